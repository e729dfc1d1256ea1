// Package archive keeps an append-only SQLite history of games and accepted
// moves for offline inspection. Writes are asynchronous and best-effort: the
// archive never sits on the request path, and a saturated queue drops records
// rather than blocking a move.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chessmatch/internal/core"
	"chessmatch/internal/game"
)

// Archive handles SQLite history writes through a single async writer.
type Archive struct {
	db           *sql.DB
	path         string
	writeChan    chan func(*sql.Tx) error
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New opens (or creates) the archive database and starts the async writer.
func New(dataSourceName string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithCancel(context.Background())

	a := &Archive{
		db:        db,
		path:      dataSourceName,
		writeChan: make(chan func(*sql.Tx) error, 1000),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.healthStatus.Store(true)

	if err := a.initDB(); err != nil {
		cancel()
		db.Close()
		return nil, err
	}

	a.wg.Add(1)
	go a.writerLoop()

	return a, nil
}

// IsHealthy returns true if the archive is operational.
func (a *Archive) IsHealthy() bool {
	return a.healthStatus.Load()
}

func (a *Archive) initDB() error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return tx.Commit()
}

// writerLoop processes async write operations
func (a *Archive) writerLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			// Drain remaining writes with timeout
			deadline := time.After(2 * time.Second)
			for {
				select {
				case fn := <-a.writeChan:
					if a.healthStatus.Load() {
						a.executeWrite(fn)
					}
				case <-deadline:
					return
				default:
					return
				}
			}

		case fn := <-a.writeChan:
			if !a.healthStatus.Load() {
				continue
			}
			a.executeWrite(fn)
		}
	}
}

func (a *Archive) executeWrite(fn func(*sql.Tx) error) {
	tx, err := a.db.Begin()
	if err != nil {
		log.Printf("Archive degraded: failed to begin transaction: %v", err)
		a.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		log.Printf("Archive degraded: write operation failed: %v", err)
		a.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("Archive degraded: failed to commit: %v", err)
		a.healthStatus.Store(false)
		return
	}
}

// enqueue submits a write, dropping it when the queue is saturated.
func (a *Archive) enqueue(what string, fn func(*sql.Tx) error) {
	if !a.healthStatus.Load() {
		return
	}
	select {
	case a.writeChan <- fn:
	default:
		log.Printf("Archive write queue full, dropping %s", what)
	}
}

// RecordGame records a freshly created game.
func (a *Archive) RecordGame(rec game.Record) {
	a.enqueue("game record", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO games (game_id, white_id, initial_fen, created_at) VALUES (?, ?, ?, ?)`,
			rec.ID, rec.WhiteID, rec.FEN, rec.CreatedAt,
		)
		return err
	})
}

// RecordJoin records the black side joining a game.
func (a *Archive) RecordJoin(gameID, blackID string) {
	a.enqueue("join record", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`UPDATE games SET black_id = ? WHERE game_id = ?`,
			blackID, gameID,
		)
		return err
	})
}

// RecordMove records an accepted move and the position after it.
func (a *Archive) RecordMove(gameID string, moveNumber int, move, fenAfter, correlationID string) {
	a.enqueue("move record", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO moves (game_id, move_number, move_code, fen_after_move, correlation_id, applied_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			gameID, moveNumber, move, fenAfter, correlationID, time.Now().UTC(),
		)
		return err
	})
}

// RecordResult records the outcome of a finished game.
func (a *Archive) RecordResult(gameID string, result core.Result) {
	a.enqueue("result record", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`UPDATE games SET result = ?, finished_at = ? WHERE game_id = ?`,
			string(result), time.Now().UTC(), gameID,
		)
		return err
	})
}

// QueryMoves returns the archived move history for a game in order.
func (a *Archive) QueryMoves(gameID string) ([]MoveRow, error) {
	rows, err := a.db.Query(
		`SELECT move_number, move_code, fen_after_move, correlation_id, applied_at
		 FROM moves WHERE game_id = ? ORDER BY move_number`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var moves []MoveRow
	for rows.Next() {
		var m MoveRow
		m.GameID = gameID
		if err := rows.Scan(&m.MoveNumber, &m.MoveCode, &m.FENAfterMove, &m.CorrelationID, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return moves, nil
}

// Close stops the writer and closes the database.
func (a *Archive) Close() error {
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Printf("Warning: archive writer shutdown timeout, some writes may be lost")
	}

	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
