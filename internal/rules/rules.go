// Package rules validates moves against a position and produces the resulting
// position and terminal status. It is deterministic and side-effect free.
package rules

import (
	"fmt"

	"chessmatch/internal/board"
	"chessmatch/internal/core"
)

// Outcome is the result of a successfully applied move.
type Outcome struct {
	FEN        string
	SideToMove core.Color
	Move       string // normalized move code
	Finished   bool
	Result     core.Result
}

// Engine is the single rules capability the service depends on. Implementations
// must be pure: identical inputs always produce identical outputs.
type Engine interface {
	ValidateAndApply(fen, moveCode string) (Outcome, error)
}

// Standard implements full standard chess legality.
type Standard struct{}

func NewStandard() *Standard {
	return &Standard{}
}

// ValidateAndApply checks moveCode against the position in fen. A malformed
// move code fails with core.ErrMalformedMove, a chess-illegal move with
// core.ErrIllegalMove. A malformed fen is a caller contract violation and
// fails with core.ErrInternal.
func (s *Standard) ValidateAndApply(fen, moveCode string) (Outcome, error) {
	b, err := board.ParseFEN(fen)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: stored position unreadable: %v", core.ErrInternal, err)
	}

	m, err := board.ParseMove(moveCode)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", core.ErrMalformedMove, err)
	}

	mover := b.Turn()
	if err := b.Apply(m); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", core.ErrIllegalMove, err)
	}

	out := Outcome{
		FEN:        b.FEN(),
		SideToMove: b.Turn(),
		Move:       m.String(),
	}

	switch {
	case !b.HasLegalMove(b.Turn()):
		out.Finished = true
		if b.InCheck(b.Turn()) {
			out.Result = core.Winner(mover)
		} else {
			out.Result = core.ResultDraw
		}
	case b.BareKings():
		// Trivial dead position: neither side can ever mate.
		out.Finished = true
		out.Result = core.ResultDraw
	}

	return out, nil
}
