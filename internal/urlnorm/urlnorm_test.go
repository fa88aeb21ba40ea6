package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty input rejected", in: "", wantErr: true},
		{name: "bare host:port gets http scheme", in: "peer.example.com:8443", want: "http://peer.example.com:8443"},
		{name: "bare ipv4:port gets http scheme", in: "127.0.0.1:8443", want: "http://127.0.0.1:8443"},
		{name: "https URL passes through unchanged", in: "https://peer.example.com:8443", want: "https://peer.example.com:8443"},
		{name: "http URL passes through unchanged", in: "http://peer.example.com:8443", want: "http://peer.example.com:8443"},
		{name: "single trailing slash stripped", in: "https://peer.example.com:8443/", want: "https://peer.example.com:8443"},
		{name: "only one trailing slash stripped, not all", in: "https://peer.example.com:8443//", want: "https://peer.example.com:8443/"},
		{name: "trailing slash stripped after scheme prepended", in: "peer.example.com:8443/", want: "http://peer.example.com:8443"},
		{name: "path-bearing input without scheme rejected", in: "peer.example.com:8443/mesh", wantErr: true},
		{name: "host without port and without scheme rejected", in: "peer.example.com", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, nil; want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}
