package queue

import (
	"context"
	"sync"

	"hospital-queue/internal/models"
)

// Catalog resolves the services patients can queue for.
type Catalog interface {
	Service(ctx context.Context, id int64) (models.Service, error)
}

// MemoryCatalog is a Catalog seeded in-process, used in development and tests.
type MemoryCatalog struct {
	mu       sync.RWMutex
	services map[int64]models.Service
}

func NewMemoryCatalog(services ...models.Service) *MemoryCatalog {
	c := &MemoryCatalog{services: make(map[int64]models.Service, len(services))}
	for _, s := range services {
		c.services[s.ID] = s
	}
	return c
}

func (c *MemoryCatalog) Put(s models.Service) {
	c.mu.Lock()
	c.services[s.ID] = s
	c.mu.Unlock()
}

func (c *MemoryCatalog) Service(_ context.Context, id int64) (models.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.services[id]
	if !ok {
		return models.Service{}, ErrServiceNotFound
	}
	return s, nil
}
