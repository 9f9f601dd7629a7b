package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"scala40-server/internal/scala40"
)

// PostgresStore is the shared-database backend. Game JSON goes into a JSONB
// column; the version column guards every update.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrate(ctx, goose.DialectPostgres, db, "migrations/postgres")
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Save(ctx context.Context, g *scala40.GameState) error {
	data, next, err := encodeNext(g)
	if err != nil {
		return err
	}

	var tag pgconn.CommandTag
	if g.Version == 0 {
		tag, err = s.pool.Exec(ctx, `
			INSERT INTO games (game_id, lobby_id, status, version, game_data, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id) DO NOTHING
		`, g.ID, g.LobbyID, g.Status.String(), next, data, g.UpdatedAt)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE games SET status = $2, version = $3, game_data = $4, updated_at = $5
			 WHERE game_id = $1 AND version = $6
		`, g.ID, g.Status.String(), next, data, g.UpdatedAt, g.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save %s at version %d: %w", g.ID, g.Version, scala40.ErrVersionConflict)
	}
	g.Version = next
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, gameID string) (*scala40.GameState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT game_data FROM games WHERE game_id = $1`, gameID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", gameID, scala40.ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	var g scala40.GameState
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize game %s: %w", gameID, err)
	}
	return &g, nil
}

func (s *PostgresStore) Delete(ctx context.Context, gameID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", gameID, scala40.ErrGameNotFound)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT game_id FROM games ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE status = $1 AND updated_at < $2`,
		scala40.StatusFinished.String(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
