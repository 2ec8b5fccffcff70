// Package metrics provides Prometheus collectors for the streaming pipeline.
//
// Every collector is a prometheus.Collector registered on the registry it
// is created with. Recording methods are safe on a nil receiver so components
// can run without metrics.
package metrics

import "time"

// ShutdownTimeout bounds the graceful shutdown of the metrics HTTP server.
const ShutdownTimeout = 5 * time.Second

const namespace = "wavescope"
