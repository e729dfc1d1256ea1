package core

// Color identifies the side to move, using FEN notation.
type Color string

const (
	ColorWhite Color = "w"
	ColorBlack Color = "b"
)

func (c Color) Opposite() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

func (c Color) String() string {
	if c == ColorWhite {
		return "white"
	}
	return "black"
}

// Status is the lifecycle phase of a game. Transitions only move forward:
// waiting -> active -> finished.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Result is the outcome of a finished game.
type Result string

const (
	ResultWhiteWin Result = "white_win"
	ResultBlackWin Result = "black_win"
	ResultDraw     Result = "draw"
)

// Winner maps a color to the corresponding win result.
func Winner(c Color) Result {
	if c == ColorWhite {
		return ResultWhiteWin
	}
	return ResultBlackWin
}
