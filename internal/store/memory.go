package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

// Memory is the in-process backend: non-durable, single process, atomic by
// mutex serialization.
type Memory struct {
	mu       sync.RWMutex
	games    map[string]game.Record
	byStatus map[core.Status]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		games: make(map[string]game.Record),
		byStatus: map[core.Status]map[string]struct{}{
			core.StatusWaiting:  {},
			core.StatusActive:   {},
			core.StatusFinished: {},
		},
	}
}

func (m *Memory) Create(_ context.Context, rec game.Record) (game.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = rec.Clone()
	rec.ID = uuid.NewString()
	for m.games[rec.ID].ID != "" {
		rec.ID = uuid.NewString()
	}

	m.games[rec.ID] = rec
	m.byStatus[rec.Status][rec.ID] = struct{}{}
	return rec.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (game.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.games[id]
	if !ok {
		return game.Record{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return rec.Clone(), nil
}

func (m *Memory) UpdateIfVersion(_ context.Context, id string, expected uint64, mutate Mutator) (game.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.games[id]
	if !ok {
		return game.Record{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if cur.Version != expected {
		return game.Record{}, fmt.Errorf("game %s: stored version %d, expected %d: %w",
			id, cur.Version, expected, ErrVersionConflict)
	}

	next := cur.Clone()
	if err := mutate(&next); err != nil {
		return game.Record{}, err
	}
	next.ID = cur.ID
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	if next.Status != cur.Status {
		delete(m.byStatus[cur.Status], id)
		m.byStatus[next.Status][id] = struct{}{}
	}
	m.games[id] = next
	return next.Clone(), nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]game.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []game.Record
	if f.Status != "" {
		for id := range m.byStatus[f.Status] {
			out = append(out, m.games[id].Clone())
		}
		return out, nil
	}
	for _, rec := range m.games {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
