// Package main is the interactive line-oriented client for the chessmatch
// server.
package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"chessmatch/internal/board"
	"chessmatch/internal/client/api"
	"chessmatch/internal/client/display"
	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "API server URL")
		identity  = flag.String("as", "", "Player identity to act as")
	)
	flag.Parse()

	client := api.New(*serverURL)

	rl, err := readline.New("chessmatch> ")
	if err != nil {
		fmt.Printf("Failed to initialize terminal: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Printf("Connected to %s\n", *serverURL)
	if *identity == "" {
		fmt.Println("No identity set; use 'as <name>' before creating or joining games")
	}
	fmt.Println("Type 'help' for commands")

	session := &session{client: client, identity: *identity}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		args := strings.Fields(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		session.dispatch(args)
	}
}

type session struct {
	client   *api.Client
	identity string
	gameID   string // last created/joined game, used as default
}

func (s *session) dispatch(args []string) {
	switch args[0] {
	case "help":
		s.help()
	case "as":
		if len(args) != 2 {
			display.Bad("usage: as <name>")
			return
		}
		s.identity = args[1]
		display.Good("Acting as %s", s.identity)
	case "create":
		s.create()
	case "list":
		s.list(len(args) > 1 && args[1] == "waiting")
	case "join":
		if len(args) != 2 {
			display.Bad("usage: join <game-id>")
			return
		}
		s.join(args[1])
	case "move":
		s.move(args[1:])
	case "show":
		s.show(args[1:])
	case "history":
		s.history(args[1:])
	case "watch":
		s.watch(args[1:])
	default:
		display.Bad("Unknown command %q, try 'help'", args[0])
	}
}

func (s *session) help() {
	fmt.Println(`Commands:
  as <name>                set the identity used for create/join/move
  create                   create a game (you play white)
  list [waiting]           list games, optionally only open seats
  join <game-id>           join a waiting game (you play black)
  move <code> [game-id]    submit a move, e.g. e2e4 or e7e8q
  show [game-id]           print the board and game state
  history [game-id]        print the archived move history
  watch [game-id]          wait for the next change and show it
  quit                     leave`)
}

func (s *session) requireIdentity() bool {
	if s.identity == "" {
		display.Bad("Set an identity first: as <name>")
		return false
	}
	return true
}

// resolveGame picks an explicit ID argument over the session default.
func (s *session) resolveGame(args []string) (string, bool) {
	if len(args) > 0 {
		return args[len(args)-1], true
	}
	if s.gameID == "" {
		display.Bad("No game selected; pass a game ID")
		return "", false
	}
	return s.gameID, true
}

func (s *session) create() {
	if !s.requireIdentity() {
		return
	}
	rec, err := s.client.CreateGame(s.identity)
	if err != nil {
		display.Bad("Create failed: %v", err)
		return
	}
	s.gameID = rec.ID
	display.Good("Created game %s, waiting for an opponent", rec.ID)
}

func (s *session) list(waitingOnly bool) {
	recs, err := s.client.ListGames(waitingOnly)
	if err != nil {
		display.Bad("List failed: %v", err)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No games")
		return
	}
	for _, rec := range recs {
		fmt.Println(display.Summary(rec))
	}
}

func (s *session) join(id string) {
	if !s.requireIdentity() {
		return
	}
	rec, err := s.client.JoinGame(id, s.identity)
	if err != nil {
		display.Bad("Join failed: %v", err)
		return
	}
	s.gameID = rec.ID
	display.Good("Joined game %s as black vs %s", rec.ID, rec.WhiteID)
	s.render(rec)
}

func (s *session) move(args []string) {
	if !s.requireIdentity() {
		return
	}
	if len(args) == 0 {
		display.Bad("usage: move <code> [game-id]")
		return
	}
	code := args[0]
	id, ok := s.resolveGame(args[1:])
	if !ok {
		return
	}
	rec, err := s.client.Move(id, s.identity, code, "")
	if err != nil {
		display.Bad("Move rejected: %v", err)
		return
	}
	s.gameID = rec.ID
	s.render(rec)
}

func (s *session) show(args []string) {
	id, ok := s.resolveGame(args)
	if !ok {
		return
	}
	rec, err := s.client.GetGame(id)
	if err != nil {
		display.Bad("Fetch failed: %v", err)
		return
	}
	s.gameID = rec.ID
	s.render(rec)
}

func (s *session) history(args []string) {
	id, ok := s.resolveGame(args)
	if !ok {
		return
	}
	rows, err := s.client.MoveHistory(id)
	if err != nil {
		display.Bad("History failed: %v", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No archived moves")
		return
	}
	for _, row := range rows {
		line := fmt.Sprintf("%3d. %s", row.MoveNumber, row.MoveCode)
		if row.CorrelationID != "" {
			line += "  [" + row.CorrelationID + "]"
		}
		fmt.Println(line)
	}
}

func (s *session) watch(args []string) {
	id, ok := s.resolveGame(args)
	if !ok {
		return
	}
	rec, err := s.client.GetGame(id)
	if err != nil {
		display.Bad("Fetch failed: %v", err)
		return
	}
	fmt.Printf("Waiting for game %s to change (version %s)...\n", id, strconv.FormatUint(rec.Version, 10))
	rec, err = s.client.WaitGame(id, rec.Version)
	if err != nil {
		display.Bad("Wait failed: %v", err)
		return
	}
	s.gameID = rec.ID
	s.render(rec)
}

func (s *session) render(rec game.Record) {
	b, err := board.ParseFEN(rec.FEN)
	if err != nil {
		display.Bad("Bad position in record: %v", err)
		return
	}
	display.RenderBoard(b.ToASCII())

	switch rec.Status {
	case core.StatusWaiting:
		fmt.Printf("Waiting for an opponent (%s plays white)\n", rec.WhiteID)
	case core.StatusActive:
		fmt.Printf("%s to move (%s)\n", display.TurnLabel(rec.SideToMove), rec.TurnIdentity())
	case core.StatusFinished:
		display.Good("Game over: %s", rec.Result)
	}
	if n := len(rec.Moves); n > 0 {
		last := rec.Moves[n-1]
		if piece := b.GetPieceAt(last.Move[2:4]); piece != 0 {
			fmt.Printf("Last move: %s (%c, move %d)\n", last.Move, piece, n)
		} else {
			fmt.Printf("Last move: %s (move %d)\n", last.Move, n)
		}
	}
}
