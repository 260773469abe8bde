// Package archive persists completed hands to a local SQLite file for
// later review. Sessions hand finished records to a background
// Recorder; live play never reads the archive back.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Hand is one completed hand ready for storage. Card and seat fields
// are stored in text notation so the archive is readable with plain
// SQL tooling.
type Hand struct {
	ID            string
	PlayedAt      time.Time
	HeroSeat      string
	VillainSeat   string
	Winner        string
	Pot           int
	StreetReached string
	Board         string
	HeroCards     string
	VillainCards  string
	Actions       []Action
}

// Action is one applied action within a hand, ordered by Seq.
type Action struct {
	Seq    int
	Street string
	Seat   string
	Action string
	Amount int
}

// Store is the SQLite-backed hand archive.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hands (
		id             TEXT PRIMARY KEY,
		played_at      INTEGER NOT NULL,
		hero_seat      TEXT NOT NULL,
		villain_seat   TEXT NOT NULL,
		winner         TEXT NOT NULL,
		pot            INTEGER NOT NULL,
		street_reached TEXT NOT NULL,
		board          TEXT NOT NULL,
		hero_cards     TEXT NOT NULL,
		villain_cards  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS actions (
		hand_id TEXT NOT NULL REFERENCES hands(id) ON DELETE CASCADE,
		seq     INTEGER NOT NULL,
		street  TEXT NOT NULL,
		seat    TEXT NOT NULL,
		action  TEXT NOT NULL,
		amount  INTEGER NOT NULL,
		PRIMARY KEY (hand_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hands_played_at ON hands (played_at)`,
}

// Open opens the archive database at path, creating the file, parent
// directory and schema as needed. The pool is pinned to a single
// connection; SQLite handles one writer at a time anyway.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty archive path")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create archive directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure archive schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertHands writes a batch of hands and their actions in one
// transaction. Re-inserting an already stored hand id fails the batch.
func (s *Store) InsertHands(ctx context.Context, hands []Hand) error {
	if len(hands) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, h := range hands {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO hands (id, played_at, hero_seat, villain_seat, winner, pot,
                   street_reached, board, hero_cards, villain_cards)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.PlayedAt.UnixMilli(), h.HeroSeat, h.VillainSeat, h.Winner,
			h.Pot, h.StreetReached, h.Board, h.HeroCards, h.VillainCards,
		); err != nil {
			return fmt.Errorf("insert hand %s: %w", h.ID, err)
		}
		for _, a := range h.Actions {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO actions (hand_id, seq, street, seat, action, amount)
VALUES (?, ?, ?, ?, ?, ?)`,
				h.ID, a.Seq, a.Street, a.Seat, a.Action, a.Amount,
			); err != nil {
				return fmt.Errorf("insert hand %s action %d: %w", h.ID, a.Seq, err)
			}
		}
	}
	return tx.Commit()
}

// Hands returns up to limit stored hands, most recent first, with
// their actions in sequence order.
func (s *Store) Hands(ctx context.Context, limit int) ([]Hand, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, played_at, hero_seat, villain_seat, winner, pot,
       street_reached, board, hero_cards, villain_cards
FROM hands ORDER BY played_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query hands: %w", err)
	}
	defer rows.Close()

	var hands []Hand
	for rows.Next() {
		var h Hand
		var playedAt int64
		if err := rows.Scan(&h.ID, &playedAt, &h.HeroSeat, &h.VillainSeat,
			&h.Winner, &h.Pot, &h.StreetReached, &h.Board,
			&h.HeroCards, &h.VillainCards); err != nil {
			return nil, fmt.Errorf("scan hand: %w", err)
		}
		h.PlayedAt = time.UnixMilli(playedAt)
		hands = append(hands, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hands: %w", err)
	}

	for i := range hands {
		actions, err := s.actions(ctx, hands[i].ID)
		if err != nil {
			return nil, err
		}
		hands[i].Actions = actions
	}
	return hands, nil
}

func (s *Store) actions(ctx context.Context, handID string) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, street, seat, action, amount
FROM actions WHERE hand_id = ? ORDER BY seq`, handID)
	if err != nil {
		return nil, fmt.Errorf("query actions for %s: %w", handID, err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.Seq, &a.Street, &a.Seat, &a.Action, &a.Amount); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
