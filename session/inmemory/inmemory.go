package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/session"
)

type Store struct {
	states map[string]*models.IterationState
	mu     sync.RWMutex
}

func NewInMemoryStateStore() *Store {
	return &Store{states: make(map[string]*models.IterationState)}
}

func (store *Store) Create(_ context.Context, queryID, query string) (models.IterationState, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.states[queryID]; ok {
		return models.IterationState{}, session.ErrStateExists
	}
	st := &models.IterationState{QueryID: queryID, Query: query, CreatedAt: time.Now()}
	store.states[queryID] = st
	return snapshot(st), nil
}

func (store *Store) Get(_ context.Context, queryID string) (models.IterationState, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	st, ok := store.states[queryID]
	if !ok {
		return models.IterationState{}, session.ErrStateNotFound
	}
	return snapshot(st), nil
}

func (store *Store) AppendResults(_ context.Context, queryID string, results []models.ToolResult) (models.IterationState, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	st, ok := store.states[queryID]
	if !ok {
		return models.IterationState{}, session.ErrStateNotFound
	}
	st.ToolResults = append(st.ToolResults, results...)
	st.Iteration++
	return snapshot(st), nil
}

func (store *Store) Delete(_ context.Context, queryID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.states, queryID)
	return nil
}

// Len reports the number of live states.
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.states)
}

func snapshot(st *models.IterationState) models.IterationState {
	out := *st
	out.ToolResults = st.History()
	return out
}
