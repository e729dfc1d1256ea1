// Package display renders boards and game state for the terminal.
package display

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

// Terminal color codes
const (
	reset = "\033[0m"
	red   = "\033[31m"
	green = "\033[32m"
	blue  = "\033[34m"
	cyan  = "\033[36m"
)

// colorEnabled is false when stdout is not a terminal (piped output).
var colorEnabled = term.IsTerminal(int(os.Stdout.Fd()))

func colorize(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + reset
}

// RenderBoard prints an ASCII board with colored pieces.
func RenderBoard(asciiBoard string) {
	for i, line := range strings.Split(asciiBoard, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		isEdgeLine := i == 0 || i == 9

		for _, char := range line {
			switch {
			case char >= 'a' && char <= 'h' && isEdgeLine:
				fmt.Print(colorize(cyan, string(char)))
			case char >= 'A' && char <= 'Z':
				fmt.Print(colorize(blue, string(char)))
			case char >= 'a' && char <= 'z' && !isEdgeLine:
				fmt.Print(colorize(red, string(char)))
			case char >= '1' && char <= '8':
				fmt.Print(colorize(cyan, string(char)))
			default:
				fmt.Printf("%c", char)
			}
		}
		fmt.Println()
	}
}

// TurnLabel returns a colored side-to-move indicator.
func TurnLabel(turn core.Color) string {
	if turn == core.ColorWhite {
		return colorize(blue, "White")
	}
	return colorize(red, "Black")
}

// Summary formats a one-line game summary for listings.
func Summary(rec game.Record) string {
	opponent := rec.BlackID
	if opponent == "" {
		opponent = "(open seat)"
	}
	s := fmt.Sprintf("%s  %s vs %s  [%s]", rec.ID, rec.WhiteID, opponent, rec.Status)
	if rec.Status == core.StatusFinished {
		s += " " + string(rec.Result)
	} else {
		s += fmt.Sprintf(" %d moves, %s to move", len(rec.Moves), rec.SideToMove)
	}
	return s
}

// Good prints a success line.
func Good(format string, args ...interface{}) {
	fmt.Println(colorize(green, fmt.Sprintf(format, args...)))
}

// Bad prints an error line.
func Bad(format string, args ...interface{}) {
	fmt.Println(colorize(red, fmt.Sprintf(format, args...)))
}
