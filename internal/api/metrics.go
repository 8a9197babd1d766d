package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the default prometheus registry, where the
// lifecycle counters are registered.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
