// Package monitor serves the local observability endpoint: health and
// recorder status as JSON plus Prometheus metrics. It binds to localhost
// and is disabled by default.
package monitor
