package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/config"
	"scala40-server/internal/game"
	"scala40-server/internal/lobby"
	"scala40-server/internal/notify"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

const (
	messagesPerSecond = 10
	inactiveTimeout   = 10 * time.Minute
	sweepInterval     = time.Hour
	healthInterval    = time.Minute
)

type Server struct {
	cfg     config.Config
	log     *logrus.Entry
	backend *store.Backend
	nc      *nats.Conn
	engine  *scala40.Engine
	lobbies *lobby.Manager

	connectionManager *ConnectionManager
	sessionManager    *SessionManager
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth

	stop     chan struct{}
	stopOnce sync.Once
	tasks    sync.WaitGroup
}

// New opens the configured store and, when NATS_URL is set, the event bus.
func New(ctx context.Context, cfg config.Config, log *logrus.Entry) (*Server, error) {
	backend, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisTTL:    cfg.RedisTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	log.WithField("driver", cfg.StoreDriver).Info("store ready")

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		if nc, err = notify.Connect(cfg.NATSURL, log); err != nil {
			backend.Close()
			return nil, err
		}
		log.WithField("url", cfg.NATSURL).Info("publishing game events to NATS")
	}

	var rng game.Rand
	if cfg.ShuffleSeed != nil {
		log.WithField("seed", *cfg.ShuffleSeed).Warn("deterministic shuffling is on")
		rng = game.NewSeededRand(*cfg.ShuffleSeed)
	}
	return newServer(cfg, log, backend, nc, rng), nil
}

func newServer(cfg config.Config, log *logrus.Entry, backend *store.Backend, nc *nats.Conn, rng game.Rand) *Server {
	opts := []scala40.Option{scala40.WithLogger(log.WithField("component", "engine"))}
	if nc != nil {
		opts = append(opts, scala40.WithEventSink(notify.NewPublisher(nc, log)))
	}
	engine := scala40.NewEngine(backend.Games, rng, opts...)

	return &Server{
		cfg:               cfg,
		log:               log,
		backend:           backend,
		nc:                nc,
		engine:            engine,
		lobbies:           lobby.NewManager(backend.Lobbies, engine, log.WithField("component", "lobby")),
		connectionManager: NewConnectionManager(),
		sessionManager:    NewSessionManager(),
		rateLimiter:       NewRateLimiter(messagesPerSecond, time.Second),
		connectionHealth:  NewConnectionHealth(),
		stop:              make(chan struct{}),
	}
}

// HTTPServer wraps the routes and starts the background tasks.
func (s *Server) HTTPServer() *http.Server {
	s.startTasks()
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) startTasks() {
	s.tasks.Add(2)
	go s.cleanupTask()
	go s.healthTask()
}

// cleanupTask deletes finished games once they are older than
// FinishedGameTTL.
func (s *Server) cleanupTask() {
	defer s.tasks.Done()
	sweeper, ok := s.backend.Games.(store.Sweeper)
	if !ok {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepFinished(context.Background(), sweeper)
		}
	}
}

func (s *Server) sweepFinished(ctx context.Context, sweeper store.Sweeper) {
	deleted, err := sweeper.DeleteFinishedBefore(ctx, time.Now().Add(-s.cfg.FinishedGameTTL))
	if err != nil {
		s.log.WithError(err).Error("finished game cleanup failed")
		return
	}
	if deleted > 0 {
		s.log.WithField("deleted", deleted).Info("removed finished games")
	}
}

// healthTask closes sockets that have gone quiet and trims the rate limiter.
func (s *Server) healthTask() {
	defer s.tasks.Done()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, id := range s.connectionHealth.GetInactiveConnections(inactiveTimeout) {
				if conn := s.connectionManager.GetConnection(id); conn != nil {
					s.log.WithField("connectionId", id).Info("closing inactive connection")
					conn.Close(websocket.StatusPolicyViolation, "inactive")
				}
				s.connectionHealth.RemoveConnection(id)
			}
			s.rateLimiter.Cleanup()
		}
	}
}

// Shutdown stops the background tasks, says goodbye to every socket and
// closes the event bus and the store. Games are saved on every action, so
// there is nothing left to flush.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	var sockets sync.WaitGroup
	for _, r := range s.connectionManager.All() {
		sockets.Add(1)
		go func() {
			defer sockets.Done()
			s.sendMessage(ctx, r.Conn, ServerMessage{Type: MsgError, Payload: ErrorMessage{Code: "SERVER_SHUTDOWN", Message: "Server is restarting"}})
			r.Conn.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}

	done := make(chan struct{})
	go func() {
		sockets.Wait()
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.log.WithError(err).Warn("failed to drain NATS connection")
		}
	}
	return s.backend.Close()
}
