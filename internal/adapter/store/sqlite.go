// Package store persists game-end statistics locally.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"wordstory/internal/domain"
)

// timeLayout is fixed width so ended_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStatsStore keeps every finished game's statistics in SQLite.
type SQLiteStatsStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStatsStore opens (or creates) a SQLite database at dbPath
// and runs the schema migration.
func NewSQLiteStatsStore(dbPath string) (*SQLiteStatsStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create dir: %v", domain.ErrStatsStore, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", domain.ErrStatsStore, err)
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %v", domain.ErrStatsStore, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrStatsStore, err)
	}
	return &SQLiteStatsStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS game_stats (
			id           TEXT PRIMARY KEY,
			player_id    TEXT NOT NULL,
			display_name TEXT NOT NULL,
			stats        TEXT NOT NULL,
			ended_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_game_stats_ended_at ON game_stats(ended_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStatsStore) Close() error {
	return s.db.Close()
}

// Save stores one game-end payload.
func (s *SQLiteStatsStore) Save(ctx context.Context, stats domain.GameEndStats) error {
	_, err := s.Add(ctx, stats)
	return err
}

// Add stores one game-end payload and returns the stored record.
func (s *SQLiteStatsStore) Add(ctx context.Context, stats domain.GameEndStats) (domain.GameRecord, error) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return domain.GameRecord{}, fmt.Errorf("%w: marshal stats: %v", domain.ErrStatsStore, err)
	}
	now := s.now().UTC()
	rec := domain.GameRecord{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		PlayerID:    stats.ID,
		DisplayName: stats.DisplayName,
		Stats:       stats,
		EndedAt:     now,
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO game_stats (id, player_id, display_name, stats, ended_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.PlayerID, rec.DisplayName, string(raw), now.Format(timeLayout),
	)
	if err != nil {
		return domain.GameRecord{}, fmt.Errorf("%w: insert: %v", domain.ErrStatsStore, err)
	}
	return rec, nil
}

// Latest returns the most recently ended game, or domain.ErrNotFound.
func (s *SQLiteStatsStore) Latest(ctx context.Context) (domain.GameRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, player_id, display_name, stats, ended_at FROM game_stats ORDER BY ended_at DESC, id DESC LIMIT 1",
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameRecord{}, domain.ErrNotFound
	}
	return rec, domain.WrapOp("latest game", err)
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *SQLiteStatsStore) List(ctx context.Context, limit int) ([]domain.GameRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, player_id, display_name, stats, ended_at FROM game_stats ORDER BY ended_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrStatsStore, err)
	}
	defer rows.Close()

	var out []domain.GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.WrapOp("list games", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapOp("list games", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (domain.GameRecord, error) {
	var (
		rec     domain.GameRecord
		raw     string
		endedAt string
	)
	if err := sc.Scan(&rec.ID, &rec.PlayerID, &rec.DisplayName, &raw, &endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("%w: scan: %v", domain.ErrStatsStore, err)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Stats); err != nil {
		return rec, fmt.Errorf("%w: stats %s: %v", domain.ErrPayloadDecode, rec.ID, err)
	}
	t, err := time.Parse(timeLayout, endedAt)
	if err != nil {
		return rec, fmt.Errorf("%w: ended_at %s: %v", domain.ErrStatsStore, rec.ID, err)
	}
	rec.EndedAt = t
	return rec, nil
}
