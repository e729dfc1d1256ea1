// Package game defines the persisted game record and its lifecycle invariants.
package game

import (
	"fmt"
	"time"

	"chessmatch/internal/board"
	"chessmatch/internal/core"
)

// MoveEntry is one accepted move in the append-only move log.
type MoveEntry struct {
	Move          string    `json:"move"`
	CorrelationID string    `json:"correlationId,omitempty"`
	AppliedAt     time.Time `json:"appliedAt"`
}

// Record is the unit of persistence for a game session. Mutations go through
// the store's versioned update primitive only; Version increments on every
// successful write.
type Record struct {
	ID         string      `json:"id"`
	FEN        string      `json:"fen"`
	SideToMove core.Color  `json:"sideToMove"`
	WhiteID    string      `json:"whiteId"`
	BlackID    string      `json:"blackId,omitempty"`
	Status     core.Status `json:"status"`
	Result     core.Result `json:"result,omitempty"`
	Moves      []MoveEntry `json:"moves"`
	Version    uint64      `json:"version"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// New builds the initial record for a freshly created game. The store assigns
// the ID on create.
func New(whiteID string, now time.Time) Record {
	return Record{
		FEN:        board.StartingFEN,
		SideToMove: core.ColorWhite,
		WhiteID:    whiteID,
		Status:     core.StatusWaiting,
		Moves:      []MoveEntry{},
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy; the move log never aliases the original.
func (r Record) Clone() Record {
	out := r
	out.Moves = make([]MoveEntry, len(r.Moves))
	copy(out.Moves, r.Moves)
	return out
}

// TurnIdentity returns the identity whose turn it is.
func (r Record) TurnIdentity() string {
	if r.SideToMove == core.ColorWhite {
		return r.WhiteID
	}
	return r.BlackID
}

// CheckInvariants verifies the structural invariants of the record. A failure
// indicates a corrupted record, not a recoverable game-state error.
func (r Record) CheckInvariants() error {
	if r.BlackID != "" && r.BlackID == r.WhiteID {
		return fmt.Errorf("white and black identities are equal")
	}
	if (r.BlackID == "") != (r.Status == core.StatusWaiting) {
		return fmt.Errorf("black identity and status disagree: %q / %q", r.BlackID, r.Status)
	}
	expected := core.ColorWhite
	if len(r.Moves)%2 == 1 {
		expected = core.ColorBlack
	}
	if r.SideToMove != expected {
		return fmt.Errorf("side to move %q disagrees with move count %d", r.SideToMove, len(r.Moves))
	}
	if (r.Result != "") != (r.Status == core.StatusFinished) {
		return fmt.Errorf("result %q present but status is %q", r.Result, r.Status)
	}
	return nil
}
