package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

var modelLoadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "model",
		Name:      "load_duration_seconds",
		Help:      "Time spent constructing a model handle",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"model"},
)

func init() {
	prometheus.MustRegister(modelLoadDuration)
}
