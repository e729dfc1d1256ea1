package board

import (
	"fmt"
	"strings"

	"chessmatch/internal/core"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// Board holds a full position. Rank 0 of squares is the 8th rank (FEN order);
// white pieces are uppercase.
type Board struct {
	squares   [8][8]byte
	turn      core.Color
	castling  string
	enPassant string
	halfmove  int
	fullmove  int
}

func ParseFEN(fen string) (*Board, error) {
	parts := strings.Fields(fen)
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid FEN: expected 6 parts, got %d", len(parts))
	}

	b := &Board{}

	// Parse board
	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("invalid FEN: expected 8 ranks")
	}

	for r := 0; r < 8; r++ {
		file := 0
		for _, ch := range ranks[r] {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
			} else {
				if file >= 8 {
					return nil, fmt.Errorf("invalid FEN: too many pieces in rank %d", r+1)
				}
				if !isPiece(byte(ch)) {
					return nil, fmt.Errorf("invalid FEN: unknown piece %q", ch)
				}
				b.squares[r][file] = byte(ch)
				file++
			}
		}
		if file != 8 {
			return nil, fmt.Errorf("invalid FEN: rank %d has %d files", r+1, file)
		}
	}

	// Parse game state with validation
	switch parts[1] {
	case "w":
		b.turn = core.ColorWhite
	case "b":
		b.turn = core.ColorBlack
	default:
		return nil, fmt.Errorf("invalid FEN: turn must be 'w' or 'b'")
	}
	b.castling = parts[2]
	b.enPassant = parts[3]

	if _, err := fmt.Sscanf(parts[4], "%d", &b.halfmove); err != nil {
		return nil, fmt.Errorf("invalid FEN: halfmove counter")
	}
	if _, err := fmt.Sscanf(parts[5], "%d", &b.fullmove); err != nil {
		return nil, fmt.Errorf("invalid FEN: fullmove counter")
	}

	return b, nil
}

// FEN serializes the position back to its canonical 6-field form.
func (b *Board) FEN() string {
	var sb strings.Builder

	for r := 0; r < 8; r++ {
		empty := 0
		for f := 0; f < 8; f++ {
			piece := b.squares[r][f]
			if piece == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(piece)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r < 7 {
			sb.WriteByte('/')
		}
	}

	castling := b.castling
	if castling == "" {
		castling = "-"
	}
	enPassant := b.enPassant
	if enPassant == "" {
		enPassant = "-"
	}

	return fmt.Sprintf("%s %s %s %s %d %d", sb.String(), string(b.turn), castling, enPassant, b.halfmove, b.fullmove)
}

// ToASCII creates an ASCII representation of the board
func (b *Board) ToASCII() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")

	for r := 0; r < 8; r++ {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for f := 0; f < 8; f++ {
			piece := b.squares[r][f]
			if piece == 0 {
				sb.WriteString(". ")
			} else {
				sb.WriteString(fmt.Sprintf("%c ", piece))
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", 8-r))
	}
	sb.WriteString("  a b c d e f g h")

	return sb.String()
}

func (b *Board) Turn() core.Color {
	return b.turn
}

func (b *Board) GetPieceAt(square string) byte {
	r, f, ok := parseSquare(square)
	if !ok {
		return 0
	}
	return b.squares[r][f]
}

// parseSquare converts algebraic notation ("e2") to internal coordinates.
func parseSquare(square string) (rank, file int, ok bool) {
	if len(square) != 2 {
		return 0, 0, false
	}
	if square[0] < 'a' || square[0] > 'h' || square[1] < '1' || square[1] > '8' {
		return 0, 0, false
	}
	return int('8' - square[1]), int(square[0] - 'a'), true
}

func squareName(rank, file int) string {
	return string([]byte{byte('a' + file), byte('8' - rank)})
}

func isPiece(ch byte) bool {
	switch ch {
	case 'p', 'n', 'b', 'r', 'q', 'k', 'P', 'N', 'B', 'R', 'Q', 'K':
		return true
	}
	return false
}

func pieceColor(piece byte) core.Color {
	if piece >= 'A' && piece <= 'Z' {
		return core.ColorWhite
	}
	return core.ColorBlack
}

// pieceKind returns the lowercase piece letter regardless of color.
func pieceKind(piece byte) byte {
	if piece >= 'A' && piece <= 'Z' {
		return piece + ('a' - 'A')
	}
	return piece
}
