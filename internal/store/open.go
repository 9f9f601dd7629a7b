package store

import (
	"context"
	"fmt"
	"time"

	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

// GameStore is what every backend offers on top of scala40.Store.
type GameStore interface {
	scala40.Store
	List(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Sweeper is implemented by backends that need finished games removed by
// hand. Redis expires them on its own.
type Sweeper interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type Options struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisTTL    time.Duration
}

// Backend bundles the stores the server needs. Lobbies only persist with
// the sqlite driver; the other drivers keep them in memory.
type Backend struct {
	Games   GameStore
	Lobbies lobby.Store
	Close   func() error
}

func Open(ctx context.Context, opts Options) (*Backend, error) {
	switch opts.Driver {
	case "", "memory":
		s := NewMemoryStore()
		return &Backend{Games: s, Lobbies: s, Close: func() error { return nil }}, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Games: s, Lobbies: s, Close: s.Close}, nil
	case "postgres":
		s, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Backend{Games: s, Lobbies: NewMemoryStore(), Close: func() error { s.Close(); return nil }}, nil
	case "redis":
		s, err := OpenRedis(ctx, opts.RedisAddr, opts.RedisTTL)
		if err != nil {
			return nil, err
		}
		return &Backend{Games: s, Lobbies: NewMemoryStore(), Close: s.Close}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}
