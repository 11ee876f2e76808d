package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hospital-queue/internal/models"
	"hospital-queue/internal/queue"
)

// MySQLCatalog reads services from the services table.
type MySQLCatalog struct {
	db *sql.DB
}

var _ queue.Catalog = (*MySQLCatalog)(nil)

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (c *MySQLCatalog) Service(ctx context.Context, id int64) (models.Service, error) {
	var (
		service         models.Service
		opensAt, closes sql.NullString
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, department, baseline_minutes, is_active, opens_at, closes_at
		FROM services
		WHERE id = ?
	`, id).Scan(
		&service.ID,
		&service.Name,
		&service.Department,
		&service.BaselineMinutes,
		&service.IsActive,
		&opensAt,
		&closes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Service{}, queue.ErrServiceNotFound
	}
	if err != nil {
		return models.Service{}, fmt.Errorf("query service %d: %w", id, err)
	}
	service.OpensAt = opensAt.String
	service.ClosesAt = closes.String
	return service, nil
}
