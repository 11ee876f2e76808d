package queue

import (
	"context"
	"sync/atomic"
)

// NumberSource hands out globally unique, strictly increasing queue numbers.
type NumberSource interface {
	Next(ctx context.Context) (int64, error)
}

// SequenceNumbers is an in-process NumberSource. Numbers restart at 1 with the process.
type SequenceNumbers struct {
	last atomic.Int64
}

func (s *SequenceNumbers) Next(context.Context) (int64, error) {
	return s.last.Add(1), nil
}
