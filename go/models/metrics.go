package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type LoaderMetrics struct {
	Loads          *prometheus.CounterVec
	FramesMapped   prometheus.Counter
	FramesReleased prometheus.Counter
}

// NewLoaderMetrics registers with reg; a nil reg leaves the counters unregistered.
func NewLoaderMetrics(reg prometheus.Registerer) *LoaderMetrics {
	return &LoaderMetrics{
		Loads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rvexec",
			Name:      "loads_total",
			Help:      "Image load operations by mode and result.",
		}, []string{"mode", "result"}),
		FramesMapped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "rvexec",
			Name:      "frames_mapped_total",
			Help:      "Frames installed into process page tables.",
		}),
		FramesReleased: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "rvexec",
			Name:      "frames_released_total",
			Help:      "Frames returned to the allocator by load rollback.",
		}),
	}
}
