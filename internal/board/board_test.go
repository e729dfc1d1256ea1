package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessmatch/internal/core"
)

func TestParseFENRoundTrip(t *testing.T) {
	fens := []string{
		StartingFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
		"8/P6k/8/8/8/8/8/K7 w - - 0 1",
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
	}
	for _, fen := range fens {
		b, err := ParseFEN(fen)
		require.NoError(t, err, fen)
		assert.Equal(t, fen, b.FEN())
	}
}

func TestParseFENRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", // 5 fields
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",      // 7 ranks
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1", // unknown piece
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1", // bad turn
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - x 1", // bad clock
	}
	for _, fen := range bad {
		_, err := ParseFEN(fen)
		assert.Error(t, err, fen)
	}
}

func TestParseMove(t *testing.T) {
	m, err := ParseMove("e2e4")
	require.NoError(t, err)
	assert.Equal(t, "e2e4", m.String())

	m, err = ParseMove("E7E8Q")
	require.NoError(t, err)
	assert.Equal(t, "e7e8q", m.String())

	for _, code := range []string{"", "e2", "e2e", "e2e4e5", "i2e4", "e9e4", "e2i4", "e7e8x", "e2e2"} {
		_, err := ParseMove(code)
		assert.Error(t, err, code)
	}
}

func TestGetPieceAt(t *testing.T) {
	b, err := ParseFEN(StartingFEN)
	require.NoError(t, err)

	assert.EqualValues(t, 'R', b.GetPieceAt("a1"))
	assert.EqualValues(t, 'k', b.GetPieceAt("e8"))
	assert.EqualValues(t, 'P', b.GetPieceAt("e2"))
	assert.EqualValues(t, 0, b.GetPieceAt("e4"))
	assert.EqualValues(t, 0, b.GetPieceAt("z9"))
	assert.EqualValues(t, 0, b.GetPieceAt("e44"))
}

func TestApplySequence(t *testing.T) {
	b, err := ParseFEN(StartingFEN)
	require.NoError(t, err)

	steps := []struct {
		move string
		fen  string
	}{
		{"e2e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"},
		{"e7e5", "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"},
		{"g1f3", "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2"},
		{"b8c6", "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"},
	}
	for _, step := range steps {
		m, err := ParseMove(step.move)
		require.NoError(t, err)
		require.NoError(t, b.Apply(m), step.move)
		assert.Equal(t, step.fen, b.FEN(), step.move)
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		move string
	}{
		{"empty origin", StartingFEN, "e4e5"},
		{"opponent piece", StartingFEN, "e7e5"},
		{"own piece on target", StartingFEN, "a1a2"},
		{"pawn sideways", StartingFEN, "e2d3"},
		{"pawn triple step", StartingFEN, "e2e5"},
		{"knight straight", StartingFEN, "b1b3"},
		{"bishop through pawn", StartingFEN, "c1e3"},
		{"rook through pawn", StartingFEN, "a1a4"},
		{"king two steps", StartingFEN, "e1e3"},
		{"pinned bishop", "4r2k/8/8/8/8/8/4B3/4K3 w - - 0 1", "e2d3"},
		{"king into check", "7k/8/8/8/8/8/r7/4K3 w - - 0 1", "e1e2"},
		{"promotion missing", "8/P6k/8/8/8/8/8/K7 w - - 0 1", "a7a8"},
		{"promotion misplaced", StartingFEN, "e2e4q"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := ParseFEN(tc.fen)
			require.NoError(t, err)
			m, err := ParseMove(tc.move)
			require.NoError(t, err)

			before := b.FEN()
			assert.Error(t, b.Apply(m))
			assert.Equal(t, before, b.FEN(), "board must be unchanged after a rejected move")
		})
	}
}

func TestCastlingKingside(t *testing.T) {
	b, err := ParseFEN("r1bqk1nr/pppp1ppp/2n5/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4")
	require.NoError(t, err)

	m, err := ParseMove("e1g1")
	require.NoError(t, err)
	require.NoError(t, b.Apply(m))

	assert.Equal(t, "r1bqk1nr/pppp1ppp/2n5/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQ1RK1 b kq - 5 4", b.FEN())
}

func TestCastlingBlockedAndThroughCheck(t *testing.T) {
	// Bishop still on f1 blocks the path
	b, err := ParseFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	require.NoError(t, err)
	m, _ := ParseMove("e1g1")
	assert.Error(t, b.Apply(m))

	// Rook on f8 covers f1: the king would pass through check
	b, err = ParseFEN("5r1k/8/8/8/8/8/8/4K2R w K - 0 1")
	require.NoError(t, err)
	m, _ = ParseMove("e1g1")
	assert.Error(t, b.Apply(m))

	// Same position without the attacking rook castles fine
	b, err = ParseFEN("7k/8/8/8/8/8/8/4K2R w K - 0 1")
	require.NoError(t, err)
	m, _ = ParseMove("e1g1")
	assert.NoError(t, b.Apply(m))
	assert.Equal(t, "7k/8/8/8/8/8/8/5RK1 b - - 1 1", b.FEN())
}

func TestCastlingRightsDropWhenRookMoves(t *testing.T) {
	b, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	m, _ := ParseMove("h1g1")
	require.NoError(t, b.Apply(m))
	assert.Equal(t, "r3k2r/8/8/8/8/8/8/R3K1R1 b Qkq - 1 1", b.FEN())

	// Black captures the a1 rook: white loses the queenside right too
	m, _ = ParseMove("a8a1")
	require.NoError(t, b.Apply(m))
	assert.Equal(t, "4k2r/8/8/8/8/8/8/r3K1R1 w k - 0 2", b.FEN())
}

func TestEnPassant(t *testing.T) {
	b, err := ParseFEN(StartingFEN)
	require.NoError(t, err)

	for _, code := range []string{"e2e4", "a7a6", "e4e5", "d7d5"} {
		m, err := ParseMove(code)
		require.NoError(t, err)
		require.NoError(t, b.Apply(m), code)
	}
	require.Equal(t, "rnbqkbnr/1pp1pppp/p7/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3", b.FEN())

	m, _ := ParseMove("e5d6")
	require.NoError(t, b.Apply(m))
	assert.Equal(t, "rnbqkbnr/1pp1pppp/p2P4/8/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 3", b.FEN())
}

func TestEnPassantExpiresAfterOneMove(t *testing.T) {
	b, err := ParseFEN("rnbqkbnr/1pp1pppp/p7/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3")
	require.NoError(t, err)

	// An unrelated move clears the en passant target
	m, _ := ParseMove("b1c3")
	require.NoError(t, b.Apply(m))
	m, _ = ParseMove("a6a5")
	require.NoError(t, b.Apply(m))

	m, _ = ParseMove("e5d6")
	assert.Error(t, b.Apply(m))
}

func TestPromotion(t *testing.T) {
	b, err := ParseFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	require.NoError(t, err)

	m, err := ParseMove("a7a8q")
	require.NoError(t, err)
	require.NoError(t, b.Apply(m))
	assert.Equal(t, "Q7/7k/8/8/8/8/8/K7 b - - 0 1", b.FEN())
}

func TestHasLegalMoveAndCheck(t *testing.T) {
	// Back-rank mate: the g8 king is boxed in by its own pawns
	b, err := ParseFEN("R5k1/5ppp/8/8/8/8/8/K7 b - - 0 1")
	require.NoError(t, err)

	assert.True(t, b.InCheck(core.ColorBlack))
	assert.False(t, b.HasLegalMove(core.ColorBlack))
	assert.True(t, b.HasLegalMove(core.ColorWhite))

	// Stalemate: not in check, but every move walks into the queen or king
	b, err = ParseFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)

	assert.False(t, b.InCheck(core.ColorBlack))
	assert.False(t, b.HasLegalMove(core.ColorBlack))
}

func TestBareKings(t *testing.T) {
	b, err := ParseFEN("7k/8/8/8/8/8/8/K7 w - - 0 1")
	require.NoError(t, err)
	assert.True(t, b.BareKings())

	b, err = ParseFEN(StartingFEN)
	require.NoError(t, err)
	assert.False(t, b.BareKings())
}
