package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"hospital-queue/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type EventType string

const (
	EventJoined        EventType = "joined"
	EventStatusChanged EventType = "status_changed"
	EventCalled        EventType = "called"
)

// Event describes one store mutation together with the service snapshot taken right after it.
type Event struct {
	Type     EventType
	Entry    models.QueueEntry
	Previous models.QueueStatus
	Service  models.Service
	Snapshot models.QueueUpdate
	At       time.Time
}

type JoinRequest struct {
	ServiceID int64
	Priority  models.Priority
	OwnerID   string
}

// Operations is the public surface of the queue, wrapped by the monitoring layer.
type Operations interface {
	Join(ctx context.Context, req JoinRequest) (models.QueueEntry, error)
	UpdateStatus(ctx context.Context, entryID string, status models.QueueStatus) (models.QueueEntry, error)
	CallNext(ctx context.Context, serviceID int64) (models.QueueEntry, error)
	Position(ctx context.Context, entryID string) (int, error)
	Get(ctx context.Context, entryID string) (models.QueueEntry, error)
	Snapshot(ctx context.Context, serviceID int64) (models.QueueUpdate, error)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the authoritative set of queue entries. All reads and writes go through mu,
// and observers are invoked under mu in mutation order.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*models.QueueEntry
	lines      map[int64][]*models.QueueEntry
	services   map[int64]models.Service
	lastNumber int64
	observers  []func(Event)

	catalog   Catalog
	numbers   NumberSource
	estimator WaitEstimator
	now       func() time.Time
	log       zerolog.Logger
}

var _ Operations = (*Store)(nil)

func NewStore(log zerolog.Logger, catalog Catalog, numbers NumberSource, estimator WaitEstimator, opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*models.QueueEntry),
		lines:     make(map[int64][]*models.QueueEntry),
		services:  make(map[int64]models.Service),
		catalog:   catalog,
		numbers:   numbers,
		estimator: estimator,
		now:       time.Now,
		log:       log.With().Str("component", "queue").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every mutation. fn runs under the store lock and must not block.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) Join(ctx context.Context, req JoinRequest) (models.QueueEntry, error) {
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return models.QueueEntry{}, fmt.Errorf("%w: %q", ErrInvalidPriority, req.Priority)
	}

	service, err := s.catalog.Service(ctx, req.ServiceID)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("service %d: %w", req.ServiceID, err)
	}
	if !service.IsActive {
		return models.QueueEntry{}, fmt.Errorf("service %d: %w", req.ServiceID, ErrServiceClosed)
	}
	if !IsOpen(service.OpensAt, service.ClosesAt, s.now()) {
		return models.QueueEntry{}, fmt.Errorf("service %d outside %s-%s: %w", req.ServiceID, service.OpensAt, service.ClosesAt, ErrServiceClosed)
	}

	// The estimator may call out to the predictor, so it runs before taking the lock.
	eta := s.estimator.Estimate(ctx, service, req.Priority)

	s.mu.Lock()
	defer s.mu.Unlock()

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("allocate queue number: %w", err)
	}
	if number <= s.lastNumber {
		return models.QueueEntry{}, fmt.Errorf("%w: got %d after %d", ErrNumberReused, number, s.lastNumber)
	}
	s.lastNumber = number

	entry := &models.QueueEntry{
		ID:                   uuid.NewString(),
		ServiceID:            service.ID,
		OwnerID:              req.OwnerID,
		Priority:             req.Priority,
		Status:               models.StatusWaiting,
		QueueNumber:          number,
		CreatedAt:            s.now(),
		EstimatedWaitMinutes: eta,
	}
	s.entries[entry.ID] = entry
	s.lines[service.ID] = append(s.lines[service.ID], entry)
	s.services[service.ID] = service

	s.log.Debug().Str("entry_id", entry.ID).Int64("service_id", service.ID).
		Int64("queue_number", number).Str("priority", string(entry.Priority)).Msg("entry joined")

	s.emit(EventJoined, *entry, "", service)
	return *entry, nil
}

func (s *Store) UpdateStatus(_ context.Context, entryID string, status models.QueueStatus) (models.QueueEntry, error) {
	if !status.Valid() {
		return models.QueueEntry{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, ErrEntryNotFound
	}

	previous := entry.Status
	if !models.CanTransition(previous, status) {
		return models.QueueEntry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, status)
	}
	s.apply(entry, status)

	s.emit(EventStatusChanged, *entry, previous, s.services[entry.ServiceID])
	return *entry, nil
}

func (s *Store) CallNext(ctx context.Context, serviceID int64) (models.QueueEntry, error) {
	if _, err := s.service(ctx, serviceID); err != nil {
		return models.QueueEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// FIFO by arrival; priority only scales the ETA.
	var next *models.QueueEntry
	for _, e := range s.lines[serviceID] {
		if e.Status != models.StatusWaiting {
			continue
		}
		if next == nil || e.Before(*next) {
			next = e
		}
	}
	if next == nil {
		return models.QueueEntry{}, fmt.Errorf("service %d: %w", serviceID, ErrQueueEmpty)
	}

	s.apply(next, models.StatusCalled)

	s.emit(EventCalled, *next, models.StatusWaiting, s.services[serviceID])
	return *next, nil
}

// Position is 1 + the number of waiting entries of the same service that arrived earlier.
func (s *Store) Position(_ context.Context, entryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return 0, ErrEntryNotFound
	}
	if entry.Status != models.StatusWaiting {
		return 0, ErrNotWaiting
	}

	ahead := lo.CountBy(s.lines[entry.ServiceID], func(e *models.QueueEntry) bool {
		return e.Status == models.StatusWaiting && e.Before(*entry)
	})
	return ahead + 1, nil
}

func (s *Store) Get(_ context.Context, entryID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return models.QueueEntry{}, ErrEntryNotFound
	}
	return *entry, nil
}

func (s *Store) Snapshot(ctx context.Context, serviceID int64) (models.QueueUpdate, error) {
	service, err := s.service(ctx, serviceID)
	if err != nil {
		return models.QueueUpdate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(service), nil
}

// service prefers the copy cached at join time and falls back to the catalog.
func (s *Store) service(ctx context.Context, serviceID int64) (models.Service, error) {
	s.mu.Lock()
	service, ok := s.services[serviceID]
	s.mu.Unlock()
	if ok {
		return service, nil
	}

	service, err := s.catalog.Service(ctx, serviceID)
	if err != nil {
		return models.Service{}, fmt.Errorf("service %d: %w", serviceID, err)
	}
	return service, nil
}

func (s *Store) apply(entry *models.QueueEntry, status models.QueueStatus) {
	now := s.now()
	entry.Status = status
	switch status {
	case models.StatusCalled:
		entry.CalledAt = &now
	case models.StatusCompleted:
		entry.CompletedAt = &now
	}
}

// snapshot must be called with mu held.
func (s *Store) snapshot(service models.Service) models.QueueUpdate {
	line := s.lines[service.ID]

	active := lo.Filter(line, func(e *models.QueueEntry, _ int) bool {
		return !e.Status.Terminal()
	})
	slices.SortFunc(active, func(a, b *models.QueueEntry) int {
		switch {
		case a.Before(*b):
			return -1
		case b.Before(*a):
			return 1
		}
		return 0
	})

	return models.QueueUpdate{
		Type:        models.MessageQueueUpdate,
		ServiceID:   service.ID,
		ServiceName: service.Name,
		Department:  service.Department,
		QueueLength: lo.CountBy(line, func(e *models.QueueEntry) bool {
			return e.Status == models.StatusWaiting
		}),
		CurrentlyServing: lo.CountBy(line, func(e *models.QueueEntry) bool {
			return e.Status == models.StatusCalled || e.Status == models.StatusServing
		}),
		QueueEntries: lo.Map(active, func(e *models.QueueEntry, _ int) models.QueueEntrySummary {
			return models.QueueEntrySummary{
				QueueNumber: e.QueueNumber,
				Status:      e.Status,
				Priority:    e.Priority,
				CreatedAt:   e.CreatedAt,
			}
		}),
		Timestamp: s.now(),
	}
}

// emit must be called with mu held.
func (s *Store) emit(t EventType, entry models.QueueEntry, previous models.QueueStatus, service models.Service) {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshot(service)
	snap.Event = string(t)
	evt := Event{
		Type:     t,
		Entry:    entry,
		Previous: previous,
		Service:  service,
		Snapshot: snap,
		At:       snap.Timestamp,
	}
	for _, fn := range s.observers {
		fn(evt)
	}
}
