// Package storage persists finished games to a local SQLite database. The
// store is append-mostly: one row per game plus one row per participant,
// queried for match history and per-player win stats.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/outfoxed-dev/mafia-server/internal/engine"
)

// GameStore implements engine.Recorder on SQLite.
type GameStore struct {
	db *sql.DB
}

// Open initializes the database file and creates the schema.
func Open(dbPath string) (*GameStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return &GameStore{db: db}, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			room_code TEXT NOT NULL,
			winner TEXT NOT NULL,
			day_count INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS participants (
			game_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			username TEXT NOT NULL,
			role TEXT NOT NULL,
			team TEXT NOT NULL,
			is_winner BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (game_id, player_id),
			FOREIGN KEY (game_id) REFERENCES games(game_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_player_id ON participants(player_id);`,
		`CREATE INDEX IF NOT EXISTS idx_games_ended_at ON games(ended_at);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// RecordGame writes a finished game and its participants in one transaction.
func (s *GameStore) RecordGame(ctx context.Context, rec engine.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO games (game_id, room_id, room_code, winner, day_count, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.GameID, rec.RoomID, rec.RoomCode, rec.Winner, rec.DayCount, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	winners := make(map[string]bool, len(rec.WinningPlayers))
	for _, id := range rec.WinningPlayers {
		winners[id] = true
	}
	for _, p := range rec.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO participants (game_id, player_id, username, role, team, is_winner)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.GameID, p.PlayerID, p.Username, string(p.Role), string(p.Team), winners[p.PlayerID],
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return tx.Commit()
}

// GameSummary is one row of the match history listing.
type GameSummary struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
	Winner   string `json:"winner"`
	DayCount int    `json:"dayCount"`
	Players  int    `json:"players"`
}

// RecentGames returns the latest finished games, newest first.
func (s *GameStore) RecentGames(ctx context.Context, limit int) ([]GameSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.game_id, g.room_code, g.winner, g.day_count, COUNT(p.player_id)
		 FROM games g LEFT JOIN participants p ON p.game_id = g.game_id
		 GROUP BY g.game_id ORDER BY g.ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var gs GameSummary
		if err := rows.Scan(&gs.GameID, &gs.RoomCode, &gs.Winner, &gs.DayCount, &gs.Players); err != nil {
			return nil, err
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

// PlayerStats is the aggregate record of one player.
type PlayerStats struct {
	PlayerID string `json:"playerId"`
	Games    int    `json:"games"`
	Wins     int    `json:"wins"`
}

// StatsFor aggregates a player's games and wins. Unknown players get zeroes.
func (s *GameStore) StatsFor(ctx context.Context, playerID string) (PlayerStats, error) {
	st := PlayerStats{PlayerID: playerID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_winner), 0) FROM participants WHERE player_id = ?`,
		playerID).Scan(&st.Games, &st.Wins)
	return st, err
}

// Close releases the underlying database handle.
func (s *GameStore) Close() error {
	return s.db.Close()
}
