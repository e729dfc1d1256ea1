package archive

import "time"

// MoveRow is a row in the moves table, also served by the history endpoint.
type MoveRow struct {
	GameID        string    `db:"game_id" json:"gameId"`
	MoveNumber    int       `db:"move_number" json:"moveNumber"`
	MoveCode      string    `db:"move_code" json:"move"`
	FENAfterMove  string    `db:"fen_after_move" json:"fenAfterMove"`
	CorrelationID string    `db:"correlation_id" json:"correlationId,omitempty"`
	AppliedAt     time.Time `db:"applied_at" json:"appliedAt"`
}

// Schema defines the SQLite archive structure
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id TEXT PRIMARY KEY,
	white_id TEXT NOT NULL,
	black_id TEXT,
	initial_fen TEXT NOT NULL,
	result TEXT CHECK(result IN ('white_win', 'black_win', 'draw')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id TEXT NOT NULL,
	move_number INTEGER NOT NULL,
	move_code TEXT NOT NULL,
	fen_after_move TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games(game_id) ON DELETE CASCADE,
	UNIQUE(game_id, move_number)
);

CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);
CREATE INDEX IF NOT EXISTS idx_games_white_id ON games(white_id);
CREATE INDEX IF NOT EXISTS idx_games_black_id ON games(black_id);
`
