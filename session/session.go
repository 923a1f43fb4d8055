package session

import (
	"context"
	"errors"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
)

var (
	// ErrStateExists is returned when a trajectory with the same query id is already live.
	ErrStateExists = errors.New("iteration state already exists")
	// ErrStateNotFound is returned when no live state exists for a query id.
	ErrStateNotFound = errors.New("iteration state not found")
)

// Store is the table of live iteration states, keyed by query id.
// A state is created at trajectory start and deleted at termination.
type Store interface {
	Create(ctx context.Context, queryID, query string) (models.IterationState, error)
	Get(ctx context.Context, queryID string) (models.IterationState, error)
	// AppendResults appends results and advances the iteration counter by one.
	AppendResults(ctx context.Context, queryID string, results []models.ToolResult) (models.IterationState, error)
	// Delete is idempotent.
	Delete(ctx context.Context, queryID string) error
}

type StoreType string

const (
	InMemoryStore StoreType = "memory"
	RedisStore    StoreType = "redis"
)
