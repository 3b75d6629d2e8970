package store

import (
	"context"
	"errors"

	"github.com/joelkehle/normanpd/internal/incident"
)

var ErrNotFound = errors.New("incident not found")

// Filter narrows List. An empty Category matches every row; Limit <= 0 means
// no limit.
type Filter struct {
	Category string
	Limit    int
}

// API is the incident table. InsertMany never overwrites: the first record
// seen for a case number wins and later ones are skipped without error.
type API interface {
	Create(ctx context.Context) error
	Reset(ctx context.Context) error
	InsertMany(ctx context.Context, records []incident.Record) (int, error)
	AggregateByCategory(ctx context.Context) ([]incident.CategoryCount, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, caseNumber string) (incident.Record, error)
	List(ctx context.Context, filter Filter) ([]incident.Record, error)
	Close() error
}
