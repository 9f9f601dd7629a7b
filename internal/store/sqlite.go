package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

//go:embed migrations
var migrations embed.FS

// SQLiteStore keeps each game as a JSON blob next to the columns needed to
// find it. The version column guards every update.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrate(ctx, goose.DialectSQLite3, s.db, "migrations/sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// encodeNext serialises g as it will look once saved.
func encodeNext(g *scala40.GameState) ([]byte, int, error) {
	next := *g
	next.Version = g.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to serialize game: %w", err)
	}
	return data, next.Version, nil
}

func (s *SQLiteStore) Save(ctx context.Context, g *scala40.GameState) error {
	data, next, err := encodeNext(g)
	if err != nil {
		return err
	}

	if g.Version == 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO games (game_id, lobby_id, status, version, game_data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, g.ID, g.LobbyID, g.Status.String(), next, string(data), time.Now(), g.UpdatedAt)

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("save %s: %w", g.ID, scala40.ErrVersionConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to save game %s: %w", g.ID, err)
		}
		g.Version = next
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE games SET status = ?, version = ?, game_data = ?, updated_at = ?
		WHERE game_id = ? AND version = ?
	`, g.Status.String(), next, string(data), g.UpdatedAt, g.ID, g.Version)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save %s at version %d: %w", g.ID, g.Version, scala40.ErrVersionConflict)
	}
	g.Version = next
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, gameID string) (*scala40.GameState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT game_data FROM games WHERE game_id = ?`, gameID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", gameID, scala40.ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	var g scala40.GameState
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize game %s: %w", gameID, err)
	}
	return &g, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, gameID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE game_id = ?`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete %s: %w", gameID, scala40.ErrGameNotFound)
	}
	return nil
}

// List returns every stored game id, newest update first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT game_id FROM games ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteFinishedBefore drops finished games last touched before cutoff.
func (s *SQLiteStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE status = ? AND updated_at < ?`,
		scala40.StatusFinished.String(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check cleanup result: %w", err)
	}
	return int(rows), nil
}

func (s *SQLiteStore) SaveLobby(ctx context.Context, l *lobby.Lobby) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to serialize lobby: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO lobbies (lobby_id, code, status, lobby_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.Code, string(l.Status), string(data), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save lobby %s: %w", l.ID, err)
	}
	return nil
}

func (s *SQLiteStore) loadLobby(ctx context.Context, query string, arg any) (*lobby.Lobby, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load lobby %v: %w", arg, lobby.ErrLobbyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lobby %v: %w", arg, err)
	}
	var l lobby.Lobby
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, fmt.Errorf("failed to deserialize lobby %v: %w", arg, err)
	}
	return &l, nil
}

func (s *SQLiteStore) LoadLobby(ctx context.Context, lobbyID string) (*lobby.Lobby, error) {
	return s.loadLobby(ctx, `SELECT lobby_data FROM lobbies WHERE lobby_id = ?`, lobbyID)
}

func (s *SQLiteStore) LoadLobbyByCode(ctx context.Context, code string) (*lobby.Lobby, error) {
	return s.loadLobby(ctx, `SELECT lobby_data FROM lobbies WHERE code = ? AND status != 'closed' ORDER BY created_at DESC LIMIT 1`, code)
}

func (s *SQLiteStore) UsedCodes(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM lobbies WHERE status != ?`, string(lobby.StatusClosed))
	if err != nil {
		return nil, fmt.Errorf("failed to query lobby codes: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan lobby code: %w", err)
		}
		used[code] = true
	}
	return used, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
