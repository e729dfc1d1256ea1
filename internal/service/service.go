// Package service orchestrates game lifecycle transitions. It is the sole
// owner of invariant enforcement: turn order, join races, and status
// transitions are all decided here and applied through the store's versioned
// update primitive.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chessmatch/internal/archive"
	"chessmatch/internal/core"
	"chessmatch/internal/game"
	"chessmatch/internal/rules"
	"chessmatch/internal/store"
)

const (
	// Bounded CAS retries before surfacing Conflict to the caller.
	joinAttempts = 2 // initial try + one retry
	moveAttempts = 4 // initial try + three retries
)

// Service coordinates the rule engine, the game store, and the optional
// history archive.
type Service struct {
	store   store.Store
	rules   rules.Engine
	archive *archive.Archive // nil when archiving is disabled
	waiter  *WaitRegistry
}

func New(st store.Store, eng rules.Engine, arc *archive.Archive) *Service {
	return &Service{
		store:   st,
		rules:   eng,
		archive: arc,
		waiter:  NewWaitRegistry(),
	}
}

// CreateGame registers a new game with the creator playing white.
func (s *Service) CreateGame(ctx context.Context, whiteID string) (game.Record, error) {
	if whiteID == "" {
		return game.Record{}, fmt.Errorf("white identity required: %w", core.ErrInvalidRequest)
	}

	rec, err := s.store.Create(ctx, game.New(whiteID, time.Now().UTC()))
	if err != nil {
		return game.Record{}, mapStoreError(err)
	}

	if s.archive != nil {
		s.archive.RecordGame(rec)
	}
	return rec, nil
}

// JoinGame seats blackID in a waiting game and activates it. When two join
// requests race, the version check lets exactly one through; the loser
// re-reads once and then observes the game is no longer waiting.
func (s *Service) JoinGame(ctx context.Context, id, blackID string) (game.Record, error) {
	if blackID == "" {
		return game.Record{}, fmt.Errorf("black identity required: %w", core.ErrInvalidRequest)
	}

	var lastErr error
	for attempt := 0; attempt < joinAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return game.Record{}, mapStoreError(err)
		}

		updated, err := s.store.UpdateIfVersion(ctx, id, cur.Version, func(r *game.Record) error {
			if r.Status != core.StatusWaiting {
				return fmt.Errorf("game is not open to join: %w", core.ErrConflict)
			}
			if r.WhiteID == blackID {
				return fmt.Errorf("cannot join own game: %w", core.ErrConflict)
			}
			r.BlackID = blackID
			r.Status = core.StatusActive
			return nil
		})
		if errors.Is(err, store.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return game.Record{}, mapStoreError(err)
		}

		if s.archive != nil {
			s.archive.RecordJoin(updated.ID, blackID)
		}
		s.waiter.NotifyGame(updated.ID, updated.Version)
		return updated, nil
	}
	return game.Record{}, fmt.Errorf("join lost the race: %v: %w", lastErr, core.ErrConflict)
}

// ApplyMove validates and applies a move by moverID. The correlation ID is
// recorded with the move as opaque metadata. Version conflicts from other
// concurrent writers are retried a bounded number of times; each retry
// re-reads the record and re-validates against the fresh position.
func (s *Service) ApplyMove(ctx context.Context, id, moverID, moveCode, correlationID string) (game.Record, error) {
	if moverID == "" {
		return game.Record{}, fmt.Errorf("player identity required: %w", core.ErrInvalidRequest)
	}

	var lastErr error
	for attempt := 0; attempt < moveAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return game.Record{}, mapStoreError(err)
		}
		// A durable backend is shared state; refuse to act on a record whose
		// structural invariants no longer hold.
		if err := cur.CheckInvariants(); err != nil {
			return game.Record{}, fmt.Errorf("%w: corrupt record for game %s: %v", core.ErrInternal, id, err)
		}

		if cur.Status == core.StatusWaiting {
			return game.Record{}, fmt.Errorf("game has not started: %w", core.ErrConflict)
		}
		if cur.Status == core.StatusFinished {
			return game.Record{}, fmt.Errorf("game is finished: %w", core.ErrConflict)
		}
		if cur.TurnIdentity() != moverID {
			return game.Record{}, fmt.Errorf("not %s's turn: %w", moverID, core.ErrConflict)
		}

		outcome, err := s.rules.ValidateAndApply(cur.FEN, moveCode)
		if err != nil {
			// Validation errors surface unchanged; the record is untouched.
			return game.Record{}, err
		}

		updated, err := s.store.UpdateIfVersion(ctx, id, cur.Version, func(r *game.Record) error {
			r.FEN = outcome.FEN
			r.SideToMove = outcome.SideToMove
			r.Moves = append(r.Moves, game.MoveEntry{
				Move:          outcome.Move,
				CorrelationID: correlationID,
				AppliedAt:     time.Now().UTC(),
			})
			if outcome.Finished {
				r.Status = core.StatusFinished
				r.Result = outcome.Result
			}
			return nil
		})
		if errors.Is(err, store.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return game.Record{}, mapStoreError(err)
		}

		if s.archive != nil {
			s.archive.RecordMove(updated.ID, len(updated.Moves), outcome.Move, outcome.FEN, correlationID)
			if outcome.Finished {
				s.archive.RecordResult(updated.ID, outcome.Result)
			}
		}
		s.waiter.NotifyGame(updated.ID, updated.Version)
		return updated, nil
	}
	return game.Record{}, fmt.Errorf("move lost the race: %v: %w", lastErr, core.ErrConflict)
}

// GetGame returns the current record.
func (s *Service) GetGame(ctx context.Context, id string) (game.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return game.Record{}, mapStoreError(err)
	}
	return rec, nil
}

// ListGames returns all games, or only those still waiting for an opponent.
func (s *Service) ListGames(ctx context.Context, waitingOnly bool) ([]game.Record, error) {
	var f store.Filter
	if waitingOnly {
		f.Status = core.StatusWaiting
	}
	recs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return recs, nil
}

// MoveHistory returns the archived move rows for a game. The archive is
// best-effort storage, so the history may trail the live record.
func (s *Service) MoveHistory(ctx context.Context, id string) ([]archive.MoveRow, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("history archive is disabled: %w", core.ErrInvalidRequest)
	}
	// Surface NotFound for unknown games rather than an empty history.
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, mapStoreError(err)
	}

	rows, err := s.archive.QueryMoves(id)
	if err != nil {
		return nil, fmt.Errorf("%w: archive query for game %s: %v", core.ErrInternal, id, err)
	}
	return rows, nil
}

// RegisterWait registers a long-polling client to be notified when the game's
// version moves past the given one.
func (s *Service) RegisterWait(ctx context.Context, gameID string, version uint64) <-chan struct{} {
	return s.waiter.RegisterWait(gameID, version, ctx)
}

// ArchiveHealth reports archive status for the health endpoint.
func (s *Service) ArchiveHealth() string {
	if s.archive == nil {
		return "disabled"
	}
	if s.archive.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// Shutdown releases the wait registry, the archive, and the store.
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.waiter.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("wait registry: %w", err))
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

// mapStoreError translates store sentinels into the service error taxonomy.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%v: %w", err, core.ErrGameNotFound)
	case errors.Is(err, store.ErrVersionConflict):
		return fmt.Errorf("%v: %w", err, core.ErrConflict)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%v: %w", err, core.ErrStorage)
	default:
		return err
	}
}
