package board

import (
	"fmt"
	"strings"

	"chessmatch/internal/core"
)

// Move is a decoded move: origin square, destination square, and an optional
// promotion piece from the closed set {q, r, b, n}.
type Move struct {
	fromR, fromF int
	toR, toF     int
	promotion    byte
}

func (m Move) String() string {
	s := squareName(m.fromR, m.fromF) + squareName(m.toR, m.toF)
	if m.promotion != 0 {
		s += string(m.promotion)
	}
	return s
}

// ParseMove decodes a compact move code such as "e2e4" or "e7e8q".
func ParseMove(code string) (Move, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 4 && len(code) != 5 {
		return Move{}, fmt.Errorf("move code must be 4 or 5 characters, got %q", code)
	}

	fromR, fromF, ok := parseSquare(code[0:2])
	if !ok {
		return Move{}, fmt.Errorf("invalid origin square %q", code[0:2])
	}
	toR, toF, ok := parseSquare(code[2:4])
	if !ok {
		return Move{}, fmt.Errorf("invalid destination square %q", code[2:4])
	}
	if fromR == toR && fromF == toF {
		return Move{}, fmt.Errorf("origin and destination are the same square")
	}

	m := Move{fromR: fromR, fromF: fromF, toR: toR, toF: toF}
	if len(code) == 5 {
		switch code[4] {
		case 'q', 'r', 'b', 'n':
			m.promotion = code[4]
		default:
			return Move{}, fmt.Errorf("promotion piece must be one of q, r, b, n, got %q", code[4])
		}
	}
	return m, nil
}

// Apply validates m against the position and mutates the board on success.
// On failure the board is unchanged and the error describes why the move is
// illegal.
func (b *Board) Apply(m Move) error {
	piece := b.squares[m.fromR][m.fromF]
	if piece == 0 {
		return fmt.Errorf("no piece on %s", squareName(m.fromR, m.fromF))
	}
	if pieceColor(piece) != b.turn {
		return fmt.Errorf("piece on %s belongs to the opponent", squareName(m.fromR, m.fromF))
	}
	if target := b.squares[m.toR][m.toF]; target != 0 && pieceColor(target) == b.turn {
		return fmt.Errorf("own piece on %s", squareName(m.toR, m.toF))
	}

	if err := b.movePattern(m, piece); err != nil {
		return err
	}

	next := *b
	next.execute(m, piece)
	if next.inCheck(b.turn) {
		return fmt.Errorf("move leaves own king in check")
	}

	*b = next
	return nil
}

// InCheck reports whether the king of the given color is attacked.
func (b *Board) InCheck(color core.Color) bool {
	return b.inCheck(color)
}

// HasLegalMove reports whether the given color has at least one legal move.
func (b *Board) HasLegalMove(color core.Color) bool {
	for fromR := 0; fromR < 8; fromR++ {
		for fromF := 0; fromF < 8; fromF++ {
			piece := b.squares[fromR][fromF]
			if piece == 0 || pieceColor(piece) != color {
				continue
			}
			for toR := 0; toR < 8; toR++ {
				for toF := 0; toF < 8; toF++ {
					m := Move{fromR: fromR, fromF: fromF, toR: toR, toF: toF}
					if pieceKind(piece) == 'p' && (toR == 0 || toR == 7) {
						m.promotion = 'q'
					}
					trial := *b
					trial.turn = color
					if trial.Apply(m) == nil {
						return true
					}
				}
			}
		}
	}
	return false
}

// BareKings reports whether only the two kings remain on the board.
func (b *Board) BareKings() bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if piece := b.squares[r][f]; piece != 0 && pieceKind(piece) != 'k' {
				return false
			}
		}
	}
	return true
}

// movePattern checks the geometric movement rules for the piece, including
// castling and en passant, but not king safety.
func (b *Board) movePattern(m Move, piece byte) error {
	kind := pieceKind(piece)

	lastRank := 0
	if b.turn == core.ColorBlack {
		lastRank = 7
	}
	if m.promotion != 0 && (kind != 'p' || m.toR != lastRank) {
		return fmt.Errorf("promotion is only available for a pawn reaching the last rank")
	}
	if kind == 'p' && m.toR == lastRank && m.promotion == 0 {
		return fmt.Errorf("promotion piece required on the last rank")
	}

	dr := m.toR - m.fromR
	df := m.toF - m.fromF

	switch kind {
	case 'p':
		return b.pawnPattern(m, dr, df)
	case 'n':
		if (abs(dr) == 2 && abs(df) == 1) || (abs(dr) == 1 && abs(df) == 2) {
			return nil
		}
		return fmt.Errorf("knight cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
	case 'b':
		if abs(dr) == abs(df) && b.clearPath(m) {
			return nil
		}
		return fmt.Errorf("bishop cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
	case 'r':
		if (dr == 0 || df == 0) && b.clearPath(m) {
			return nil
		}
		return fmt.Errorf("rook cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
	case 'q':
		if (dr == 0 || df == 0 || abs(dr) == abs(df)) && b.clearPath(m) {
			return nil
		}
		return fmt.Errorf("queen cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
	case 'k':
		if abs(dr) <= 1 && abs(df) <= 1 {
			return nil
		}
		if dr == 0 && abs(df) == 2 {
			return b.castlingPattern(m)
		}
		return fmt.Errorf("king cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
	}
	return fmt.Errorf("unknown piece %q", piece)
}

func (b *Board) pawnPattern(m Move, dr, df int) error {
	dir := -1 // white advances toward rank index 0
	startRow := 6
	if b.turn == core.ColorBlack {
		dir = 1
		startRow = 1
	}
	target := b.squares[m.toR][m.toF]

	switch {
	case df == 0 && dr == dir && target == 0:
		return nil
	case df == 0 && dr == 2*dir && m.fromR == startRow &&
		target == 0 && b.squares[m.fromR+dir][m.fromF] == 0:
		return nil
	case abs(df) == 1 && dr == dir && target != 0:
		return nil // capture; color already checked in Apply
	case abs(df) == 1 && dr == dir && target == 0 && squareName(m.toR, m.toF) == b.enPassant:
		return nil // en passant capture
	}
	return fmt.Errorf("pawn cannot move %s to %s", squareName(m.fromR, m.fromF), squareName(m.toR, m.toF))
}

func (b *Board) castlingPattern(m Move) error {
	home := 7
	rook := byte('R')
	rights := "KQ"
	if b.turn == core.ColorBlack {
		home = 0
		rook = 'r'
		rights = "kq"
	}
	if m.fromR != home || m.fromF != 4 || m.toR != home {
		return fmt.Errorf("castling requires the king on its home square")
	}

	kingside := m.toF == 6
	if !kingside && m.toF != 2 {
		return fmt.Errorf("castling destination must be the c or g file")
	}

	var right byte
	var betweenFiles, passFiles []int
	var rookFile int
	if kingside {
		right = rights[0]
		betweenFiles = []int{5, 6}
		passFiles = []int{4, 5, 6}
		rookFile = 7
	} else {
		right = rights[1]
		betweenFiles = []int{1, 2, 3}
		passFiles = []int{4, 3, 2}
		rookFile = 0
	}

	if !strings.ContainsRune(b.castling, rune(right)) {
		return fmt.Errorf("castling rights lost")
	}
	if b.squares[home][rookFile] != rook {
		return fmt.Errorf("castling rook is missing")
	}
	for _, f := range betweenFiles {
		if b.squares[home][f] != 0 {
			return fmt.Errorf("castling path is blocked")
		}
	}
	enemy := b.turn.Opposite()
	for _, f := range passFiles {
		if b.attacked(home, f, enemy) {
			return fmt.Errorf("castling through check")
		}
	}
	return nil
}

// execute performs the already-validated move and updates all auxiliary
// position state: castling rights, en passant target, clocks, side to move.
func (b *Board) execute(m Move, piece byte) {
	kind := pieceKind(piece)
	target := b.squares[m.toR][m.toF]
	capture := target != 0

	// En passant removes the bypassed pawn, which sits beside the origin.
	if kind == 'p' && target == 0 && m.fromF != m.toF {
		b.squares[m.fromR][m.toF] = 0
		capture = true
	}

	b.squares[m.fromR][m.fromF] = 0
	placed := piece
	if m.promotion != 0 {
		placed = m.promotion
		if b.turn == core.ColorWhite {
			placed -= 'a' - 'A'
		}
	}
	b.squares[m.toR][m.toF] = placed

	// Castling moves the rook as well.
	if kind == 'k' && abs(m.toF-m.fromF) == 2 {
		if m.toF == 6 {
			b.squares[m.toR][5] = b.squares[m.toR][7]
			b.squares[m.toR][7] = 0
		} else {
			b.squares[m.toR][3] = b.squares[m.toR][0]
			b.squares[m.toR][0] = 0
		}
	}

	b.updateCastlingRights(m, kind)

	if kind == 'p' && abs(m.toR-m.fromR) == 2 {
		b.enPassant = squareName((m.fromR+m.toR)/2, m.fromF)
	} else {
		b.enPassant = "-"
	}

	if kind == 'p' || capture {
		b.halfmove = 0
	} else {
		b.halfmove++
	}
	if b.turn == core.ColorBlack {
		b.fullmove++
	}
	b.turn = b.turn.Opposite()
}

func (b *Board) updateCastlingRights(m Move, kind byte) {
	if kind == 'k' {
		if b.turn == core.ColorWhite {
			b.dropRights("KQ")
		} else {
			b.dropRights("kq")
		}
	}

	// A rook leaving, or being captured on, a corner square loses that right.
	corners := []struct {
		r, f  int
		right string
	}{
		{7, 0, "Q"}, {7, 7, "K"}, {0, 0, "q"}, {0, 7, "k"},
	}
	for _, c := range corners {
		if (m.fromR == c.r && m.fromF == c.f) || (m.toR == c.r && m.toF == c.f) {
			b.dropRights(c.right)
		}
	}
}

func (b *Board) dropRights(rights string) {
	remaining := strings.Map(func(r rune) rune {
		if strings.ContainsRune(rights, r) {
			return -1
		}
		return r
	}, b.castling)
	if remaining == "" || remaining == "-" {
		remaining = "-"
	}
	b.castling = remaining
}

func (b *Board) inCheck(color core.Color) bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := b.squares[r][f]
			if piece != 0 && pieceKind(piece) == 'k' && pieceColor(piece) == color {
				return b.attacked(r, f, color.Opposite())
			}
		}
	}
	return false
}

// attacked reports whether the square is attacked by any piece of color by.
func (b *Board) attacked(r, f int, by core.Color) bool {
	// Pawns: a white pawn attacks the rank above it (lower index).
	pr := r + 1
	if by == core.ColorBlack {
		pr = r - 1
	}
	for _, df := range []int{-1, 1} {
		if pr >= 0 && pr < 8 && f+df >= 0 && f+df < 8 {
			if piece := b.squares[pr][f+df]; piece != 0 && pieceKind(piece) == 'p' && pieceColor(piece) == by {
				return true
			}
		}
	}

	knightOffsets := [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	for _, o := range knightOffsets {
		nr, nf := r+o[0], f+o[1]
		if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
			if piece := b.squares[nr][nf]; piece != 0 && pieceKind(piece) == 'n' && pieceColor(piece) == by {
				return true
			}
		}
	}

	for dr := -1; dr <= 1; dr++ {
		for df := -1; df <= 1; df++ {
			if dr == 0 && df == 0 {
				continue
			}
			nr, nf := r+dr, f+df
			if nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
				if piece := b.squares[nr][nf]; piece != 0 && pieceKind(piece) == 'k' && pieceColor(piece) == by {
					return true
				}
			}
		}
	}

	straight := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	if b.rayAttack(r, f, by, straight, 'r') {
		return true
	}
	diagonal := [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	return b.rayAttack(r, f, by, diagonal, 'b')
}

// rayAttack scans outward along each direction for a slider (or queen) of
// color by.
func (b *Board) rayAttack(r, f int, by core.Color, dirs [4][2]int, slider byte) bool {
	for _, d := range dirs {
		nr, nf := r+d[0], f+d[1]
		for nr >= 0 && nr < 8 && nf >= 0 && nf < 8 {
			piece := b.squares[nr][nf]
			if piece != 0 {
				kind := pieceKind(piece)
				if pieceColor(piece) == by && (kind == slider || kind == 'q') {
					return true
				}
				break
			}
			nr += d[0]
			nf += d[1]
		}
	}
	return false
}

// clearPath checks that every square strictly between origin and destination
// is empty. Only valid for straight or diagonal moves.
func (b *Board) clearPath(m Move) bool {
	dr := sign(m.toR - m.fromR)
	df := sign(m.toF - m.fromF)
	r, f := m.fromR+dr, m.fromF+df
	for r != m.toR || f != m.toF {
		if b.squares[r][f] != 0 {
			return false
		}
		r += dr
		f += df
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
