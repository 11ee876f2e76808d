package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 120 * time.Second
)

// HeartbeatSupervisor evicts connections that have not refreshed their heartbeat within timeout.
type HeartbeatSupervisor struct {
	conns    Connections
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	recorder Recorder
	log      zerolog.Logger
}

// NewHeartbeatSupervisor reads stale connections from registry and evicts them through conns,
// which may be a wrapped registry.
func NewHeartbeatSupervisor(log zerolog.Logger, registry *Registry, conns Connections, interval, timeout time.Duration) *HeartbeatSupervisor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	if conns == nil {
		conns = registry
	}
	return &HeartbeatSupervisor{
		conns:    conns,
		registry: registry,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		recorder: nopRecorder{},
		log:      log.With().Str("component", "heartbeat").Logger(),
	}
}

func (s *HeartbeatSupervisor) WithRecorder(r Recorder) *HeartbeatSupervisor {
	if r != nil {
		s.recorder = r
	}
	return s
}

func (s *HeartbeatSupervisor) Interval() time.Duration { return s.interval }

// Sweep evicts every connection whose last heartbeat is older than now - timeout.
// It returns the number of connections this call removed.
func (s *HeartbeatSupervisor) Sweep(now time.Time) int {
	cutoff := now.Add(-s.timeout)
	stale := s.registry.Stale(cutoff)
	evicted := 0
	for _, c := range stale {
		if !s.conns.EvictStale(c.ID, cutoff) {
			continue
		}
		evicted++
		s.recorder.Evicted("heartbeat_timeout")
		s.log.Info().Str("connection_id", c.ID).Str("user_id", c.UserID).
			Dur("silent_for", now.Sub(c.LastHeartbeat())).Msg("connection evicted, heartbeat timeout")
	}
	if evicted > 0 {
		s.log.Info().Int("evicted", evicted).Int("remaining", s.registry.Count()).Msg("heartbeat sweep")
	}
	return evicted
}

func (s *HeartbeatSupervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Dur("timeout", s.timeout).Msg("heartbeat supervisor started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("heartbeat supervisor stopped")
			return nil
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
