package queue

import (
	"context"
	"fmt"
	"math"
	"time"

	"hospital-queue/internal/models"

	"github.com/rs/zerolog"
)

// MaxEstimateMinutes caps a predicted wait at one week.
const MaxEstimateMinutes = 7 * 24 * 60

var priorityMultiplier = map[models.Priority]float64{
	models.PriorityUrgent: 0.5,
	models.PriorityHigh:   0.75,
	models.PriorityMedium: 1.0,
	models.PriorityLow:    1.25,
}

type PredictRequest struct {
	ServiceID       int64           `json:"service_id"`
	Department      string          `json:"department"`
	Priority        models.Priority `json:"priority"`
	BaselineMinutes int             `json:"baseline_minutes"`
}

// Predictor is an external score source returning a wait in minutes.
type Predictor interface {
	Predict(ctx context.Context, req PredictRequest) (float64, error)
}

// WaitEstimator produces the ETA shown to a patient on join.
type WaitEstimator interface {
	Estimate(ctx context.Context, service models.Service, priority models.Priority) int
}

// Estimator scales a service baseline by priority and optionally asks a Predictor first.
// Predictor failures and timeouts fall back to the heuristic; Estimate never fails.
type Estimator struct {
	predictor Predictor
	timeout   time.Duration
	log       zerolog.Logger
}

func NewEstimator(log zerolog.Logger, predictor Predictor, timeout time.Duration) *Estimator {
	return &Estimator{
		predictor: predictor,
		timeout:   timeout,
		log:       log.With().Str("component", "estimator").Logger(),
	}
}

// Heuristic returns round(baseline * multiplier(priority)), never negative.
func Heuristic(baselineMinutes int, priority models.Priority) int {
	if baselineMinutes <= 0 {
		return 0
	}
	m, ok := priorityMultiplier[priority]
	if !ok {
		m = 1.0
	}
	return int(math.Round(float64(baselineMinutes) * m))
}

func (e *Estimator) Estimate(ctx context.Context, service models.Service, priority models.Priority) int {
	fallback := Heuristic(service.BaselineMinutes, priority)
	if e.predictor == nil {
		return fallback
	}

	minutes, err := e.predict(ctx, PredictRequest{
		ServiceID:       service.ID,
		Department:      service.Department,
		Priority:        priority,
		BaselineMinutes: service.BaselineMinutes,
	})
	if err != nil {
		e.log.Warn().Err(err).Int64("service_id", service.ID).Int("fallback", fallback).
			Msg("predictor unavailable, using heuristic")
		return fallback
	}
	return minutes
}

type prediction struct {
	score float64
	err   error
}

// predict bounds the predictor call by e.timeout even if the predictor ignores ctx.
func (e *Estimator) predict(ctx context.Context, req PredictRequest) (int, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan prediction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- prediction{err: fmt.Errorf("predictor panic: %v", r)}
			}
		}()
		score, err := e.predictor.Predict(ctx, req)
		done <- prediction{score: score, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("predictor timeout: %w", ctx.Err())
	case p := <-done:
		if p.err != nil {
			return 0, p.err
		}
		if math.IsNaN(p.score) || math.IsInf(p.score, 0) || p.score < 0 || p.score > MaxEstimateMinutes {
			return 0, fmt.Errorf("predictor returned unusable score %v", p.score)
		}
		return int(math.Round(p.score)), nil
	}
}
