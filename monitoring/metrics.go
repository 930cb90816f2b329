package monitoring

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	eventAttendees = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_attendees_total",
			Help: "Current attendee count per event",
		},
		[]string{"event_id"},
	)

	trackedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_events_total",
			Help: "Number of events with cached attendee counters",
		},
	)

	attendOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attend_operations_total",
			Help: "Total join attempts",
		},
		[]string{"event_id", "status"},
	)

	imageUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_upload_duration_seconds",
			Help:    "Duration of image uploads to the asset host",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"status"},
	)
)

type Monitor struct {
	redis    *redis.Client
	interval time.Duration
}

func NewMonitor(redisClient *redis.Client, interval time.Duration) *Monitor {
	monitor := &Monitor{
		redis:    redisClient,
		interval: interval,
	}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for range ticker.C {
		m.collectAttendeeMetrics(context.Background())
	}
}

func (m *Monitor) collectAttendeeMetrics(ctx context.Context) {
	keys, _ := m.redis.Keys(ctx, "event:attendees:*").Result()
	for _, key := range keys {
		eventID := strings.TrimPrefix(key, "event:attendees:")
		count, err := m.redis.Get(ctx, key).Int()
		if err != nil {
			continue
		}
		eventAttendees.WithLabelValues(eventID).Set(float64(count))
	}
	trackedEvents.Set(float64(len(keys)))
}

// TrackAttendOperation records the outcome of a join attempt.
func (m *Monitor) TrackAttendOperation(eventID, status string) {
	attendOperations.WithLabelValues(eventID, status).Inc()
}

// TrackUpload records an upload round trip against the asset host.
func (m *Monitor) TrackUpload(duration time.Duration, success bool) {
	label := "success"
	if !success {
		label = "error"
	}
	imageUploadDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Serve exposes the Prometheus scrape endpoint on its own port.
func Serve(port string) error {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}

	return server.ListenAndServe()
}
