// Package storage provides persistence for users, finished games, friendships
// and head-to-head tallies.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/rps-arena/internal/record"
)

// timeLayout is how timestamps are written to TEXT columns.
const timeLayout = time.RFC3339Nano

// Store manages the SQLite database connection for record persistence.
// Writes are serialized; every multi-row mutation runs in one transaction.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	dbPath, err := ExpandPath(dbPath)
	if err != nil {
		return nil, err
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("storage: cannot expand home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS friends (
			username TEXT NOT NULL,
			friend TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (username, friend)
		);

		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			player_a TEXT NOT NULL,
			player_b TEXT NOT NULL,
			winner TEXT,
			results_json TEXT NOT NULL,
			rounds_json TEXT NOT NULL,
			played_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_games (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			game_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_user_games_username ON user_games(username);

		CREATE TABLE IF NOT EXISTS player_stats (
			username TEXT PRIMARY KEY,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			draws INTEGER NOT NULL DEFAULT 0,
			games_played INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS head_to_head (
			pair_key TEXT PRIMARY KEY,
			player_a TEXT NOT NULL,
			player_b TEXT NOT NULL,
			wins_a INTEGER NOT NULL DEFAULT 0,
			wins_b INTEGER NOT NULL DEFAULT 0,
			draws INTEGER NOT NULL DEFAULT 0,
			games_played INTEGER NOT NULL DEFAULT 0
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ClaimUser returns the stored user, creating it on first use.
func (s *Store) ClaimUser(ctx context.Context, username string) (record.User, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (username, created_at) VALUES (?, ?)",
		username, time.Now().UTC().Format(timeLayout),
	)
	s.mu.Unlock()
	if err != nil {
		return record.User{}, fmt.Errorf("storage: cannot create user: %w", err)
	}
	return s.User(ctx, username)
}

// User loads a stored user with friends, game ids and stats.
// Returns record.ErrNotFound if the user was never claimed.
func (s *Store) User(ctx context.Context, username string) (record.User, error) {
	u := record.User{Username: username, Friends: []string{}, GameIDs: []string{}}

	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM users WHERE username = ?", username,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("storage: user %q: %w", username, record.ErrNotFound)
	}
	if err != nil {
		return u, fmt.Errorf("storage: cannot query user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)

	u.Friends, err = s.column(ctx,
		"SELECT friend FROM friends WHERE username = ? ORDER BY created_at, friend", username)
	if err != nil {
		return u, err
	}

	u.GameIDs, err = s.column(ctx,
		"SELECT game_id FROM user_games WHERE username = ? ORDER BY seq", username)
	if err != nil {
		return u, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT wins, losses, draws, games_played FROM player_stats WHERE username = ?`,
		username,
	).Scan(&u.Stats.Wins, &u.Stats.Losses, &u.Stats.Draws, &u.Stats.GamesPlayed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("storage: cannot query player stats: %w", err)
	}

	return u, nil
}

// ListUsers returns every stored user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]record.User, error) {
	names, err := s.column(ctx, "SELECT username FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}

	users := make([]record.User, 0, len(names))
	for _, name := range names {
		u, err := s.User(ctx, name)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// AddFriendship stores a symmetric friendship between a and b.
func (s *Store) AddFriendship(ctx context.Context, a, b string) error {
	if a == b {
		return record.ErrSelfFriend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range []string{a, b} {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE username = ?", name).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("storage: user %q: %w", name, record.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("storage: cannot query user: %w", err)
		}
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM friends WHERE username = ? AND friend = ?", a, b,
	).Scan(&exists)
	if err == nil {
		return record.ErrAlreadyFriends
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage: cannot query friendship: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO friends (username, friend, created_at) VALUES (?, ?, ?)",
			pair[0], pair[1], now,
		); err != nil {
			return fmt.Errorf("storage: cannot save friendship: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit friendship: %w", err)
	}
	return nil
}

// SaveGame records a finished game.
// In one transaction it stores the game, appends its id to both players'
// histories and updates their stats and head-to-head tally. Saving a game id
// that is already stored is a no-op, so retries never count a game twice.
func (s *Store) SaveGame(ctx context.Context, g record.GameRecord) error {
	resultsJSON, err := json.Marshal(g.Results)
	if err != nil {
		return fmt.Errorf("storage: cannot encode results: %w", err)
	}
	roundsJSON, err := json.Marshal(g.Rounds)
	if err != nil {
		return fmt.Errorf("storage: cannot encode rounds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, name := range g.Players {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO users (username, created_at) VALUES (?, ?)", name, now,
		); err != nil {
			return fmt.Errorf("storage: cannot ensure user: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO games (id, player_a, player_b, winner, results_json, rounds_json, played_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		g.ID, g.Players[0], g.Players[1], g.Winner(),
		string(resultsJSON), string(roundsJSON), g.PlayedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save game: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: cannot save game: %w", err)
	}
	if inserted == 0 {
		// Stored by an earlier call whose commit was reported as failed.
		return nil
	}

	for _, name := range g.Players {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_games (username, game_id) VALUES (?, ?)", name, g.ID,
		); err != nil {
			return fmt.Errorf("storage: cannot link game: %w", err)
		}

		var delta record.PlayerStats
		delta.ApplyResult(g.Results[name])
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO player_stats (username, wins, losses, draws, games_played)
			 VALUES (?, ?, ?, ?, 1)
			 ON CONFLICT(username) DO UPDATE SET
			   wins = wins + excluded.wins,
			   losses = losses + excluded.losses,
			   draws = draws + excluded.draws,
			   games_played = games_played + 1`,
			name, delta.Wins, delta.Losses, delta.Draws,
		); err != nil {
			return fmt.Errorf("storage: cannot update player stats: %w", err)
		}
	}

	h := record.NewHeadToHead(g.Players[0], g.Players[1])
	h.Apply(g)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO head_to_head (pair_key, player_a, player_b, wins_a, wins_b, draws, games_played)
		 VALUES (?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(pair_key) DO UPDATE SET
		   wins_a = wins_a + excluded.wins_a,
		   wins_b = wins_b + excluded.wins_b,
		   draws = draws + excluded.draws,
		   games_played = games_played + 1`,
		h.Key, h.PlayerA, h.PlayerB, h.WinsA, h.WinsB, h.Draws,
	); err != nil {
		return fmt.Errorf("storage: cannot update head-to-head: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit game: %w", err)
	}
	return nil
}

// Game retrieves a finished game by id.
func (s *Store) Game(ctx context.Context, id string) (record.GameRecord, error) {
	var (
		g           record.GameRecord
		resultsJSON string
		roundsJSON  string
		playedAt    string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, player_a, player_b, results_json, rounds_json, played_at
		 FROM games WHERE id = ?`,
		id,
	).Scan(&g.ID, &g.Players[0], &g.Players[1], &resultsJSON, &roundsJSON, &playedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, fmt.Errorf("storage: game %q: %w", id, record.ErrNotFound)
	}
	if err != nil {
		return g, fmt.Errorf("storage: cannot query game: %w", err)
	}

	if err := json.Unmarshal([]byte(resultsJSON), &g.Results); err != nil {
		return g, fmt.Errorf("storage: cannot decode results of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(roundsJSON), &g.Rounds); err != nil {
		return g, fmt.Errorf("storage: cannot decode rounds of %s: %w", id, err)
	}
	g.PlayedAt = parseTime(playedAt)

	return g, nil
}

// Games loads the games with the given ids in order. Unknown ids are skipped.
func (s *Store) Games(ctx context.Context, ids []string) ([]record.GameRecord, error) {
	games := make([]record.GameRecord, 0, len(ids))
	for _, id := range ids {
		g, err := s.Game(ctx, id)
		if errors.Is(err, record.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// HeadToHead returns the tally for a pair, zero-valued if they never finished a game.
func (s *Store) HeadToHead(ctx context.Context, a, b string) (record.HeadToHead, error) {
	h := record.NewHeadToHead(a, b)

	err := s.db.QueryRowContext(ctx,
		`SELECT wins_a, wins_b, draws, games_played FROM head_to_head WHERE pair_key = ?`,
		h.Key,
	).Scan(&h.WinsA, &h.WinsB, &h.Draws, &h.GamesPlayed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return h, fmt.Errorf("storage: cannot query head-to-head: %w", err)
	}

	return h, nil
}

// column runs a single-column string query.
func (s *Store) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// parseTime reads a stored timestamp, falling back to the SQLite default format.
func parseTime(v string) time.Time {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return t
	}
	return time.Time{}
}
