package monitoring

import (
	"context"
	"runtime"
	"time"

	"hospital-queue/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "status"},
	)

	queueOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_operation_duration_seconds",
			Help:    "Duration of queue operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	connectionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connection_events_total",
			Help: "Connection lifecycle and room membership events",
		},
		[]string{"event"},
	)

	messagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_delivered_total",
			Help: "Messages successfully queued to connections",
		},
		[]string{"kind"},
	)

	sendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Failed sends by reason",
		},
		[]string{"reason"},
	)

	evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_evictions_total",
			Help: "Connections evicted by reason",
		},
		[]string{"reason"},
	)

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Current number of live connections",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_rooms",
		Help: "Current number of non-empty rooms",
	})

	onlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_online_users",
		Help: "Users with at least one live connection",
	})

	pendingBroadcasts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_pending_broadcasts",
		Help: "Published messages waiting for delivery",
	})

	goroutineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_goroutines_total",
		Help: "Current number of active goroutines",
	})
)

// Monitor samples gauges from the registry and records delivery counters.
type Monitor struct {
	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
	interval    time.Duration
}

var _ realtime.Recorder = (*Monitor)(nil)

func NewMonitor(registry *realtime.Registry, broadcaster *realtime.Broadcaster) *Monitor {
	return &Monitor{registry: registry, broadcaster: broadcaster, interval: 15 * time.Second}
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Collect()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Collect()
		}
	}
}

func (m *Monitor) Collect() {
	activeConnections.Set(float64(m.registry.Count()))
	activeRooms.Set(float64(m.registry.RoomCount()))
	onlineUsers.Set(float64(len(m.registry.OnlineUsers())))
	if m.broadcaster != nil {
		pendingBroadcasts.Set(float64(m.broadcaster.Pending()))
	}
	goroutineCount.Set(float64(runtime.NumGoroutine()))
}

func (m *Monitor) Delivered(kind string, n int) {
	messagesDelivered.WithLabelValues(kind).Add(float64(n))
}

func (m *Monitor) SendFailed(reason string) {
	sendFailures.WithLabelValues(reason).Inc()
}

func (m *Monitor) Evicted(reason string) {
	evictions.WithLabelValues(reason).Inc()
}
