// Package metrics exposes the mesh agent's Prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "mesh"

// Registry is the Prometheus registry all mesh collectors register into.
// Kept separate from prometheus.DefaultRegisterer so tests and multiple
// agent instances in one process don't collide.
var Registry = prometheus.NewRegistry()
