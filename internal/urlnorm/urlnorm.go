// Package urlnorm normalizes peer and seed URLs to the canonical
// scheme://host:port form used throughout the mesh (§3 "Peer entry"): reject
// empty input; prepend http:// to a bare host:port; strip a single trailing
// slash rather than all of them.
package urlnorm

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Normalize applies the mesh's URL normalization rules to raw and returns
// the canonical form. It rejects empty input, prepends "http://" when raw
// has no scheme but looks like host:port, and strips exactly one trailing
// slash.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("urlnorm: empty URL")
	}

	out := raw
	if !hasScheme(out) {
		host, port, ok := splitHostPort(strings.TrimSuffix(out, "/"))
		if !ok {
			return "", fmt.Errorf("urlnorm: %q has no scheme and is not host:port", raw)
		}
		out = "http://" + host + ":" + port
	}

	out = strings.TrimSuffix(out, "/")

	return out, nil
}

// splitHostPort reports whether raw is a bare "host:port" with no path or
// scheme, returning its parts.
func splitHostPort(raw string) (host, port string, ok bool) {
	if strings.ContainsAny(raw, "/ \t") {
		return "", "", false
	}
	host, port, err := net.SplitHostPort(raw)
	if err != nil || host == "" || port == "" {
		return "", "", false
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", false
	}
	return host, port, true
}

func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	return i > 0
}
