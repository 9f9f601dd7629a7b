package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/game"
	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

// dealtGame builds a real mid-round state through the engine.
func dealtGame(t *testing.T, s scala40.Store) *scala40.GameState {
	t.Helper()
	ctx := context.Background()
	engine := scala40.NewEngine(s, game.NewSeededRand(1))

	g, err := engine.CreateGame(ctx, "", []string{"alice", "bob", "carol"}, scala40.DefaultSettings())
	require.NoError(t, err)
	outcome, err := engine.StartRound(ctx, g.ID)
	require.NoError(t, err)
	return outcome.Game
}

// midRoundGame dresses a dealt game with the fields only a round in progress
// carries: melds of both kinds, a pending discard draw, a swapped-out wild.
func midRoundGame(t *testing.T, s scala40.Store) *scala40.GameState {
	t.Helper()
	g := dealtGame(t, s)
	drawn := game.MustParseCards("Qd1")[0]
	wild := game.MustParseCards("J1")[0]

	g.Phase = scala40.PhasePlay
	g.RoundNumber = 4
	g.Smazzata = 2
	g.FirstRoundComplete = true
	g.Table = []scala40.TableCombination{
		{ID: "c1", Owner: "alice", Kind: scala40.KindSequence, Cards: game.MustParseCards("5h0", "6h0", "J0", "8h0")},
		{ID: "c2", Owner: "bob", Kind: scala40.KindSet, Cards: game.MustParseCards("9c0", "9d0", "9s1")},
	}
	g.DrawnFromDiscard = &drawn
	g.PendingWild = &wild
	g.Players[1].HasOpened = true
	g.Players[1].RoundScore = 17
	g.Players[2].Eliminated = true
	g.Players[2].Hand = []game.Card{}
	g.Scores = map[string]int{"alice": 12, "bob": 40, "carol": 105}
	g.UpdatedAt = time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)
	return g
}

// testGameStore is the contract every backend has to honour.
func testGameStore(t *testing.T, s store.GameStore) {
	ctx := context.Background()

	t.Run("unknown game", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, scala40.ErrGameNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		g := dealtGame(t, s)
		loaded, err := s.Load(ctx, g.ID)
		require.NoError(t, err)

		assert.Equal(t, g.ID, loaded.ID)
		assert.Equal(t, g.Version, loaded.Version)
		assert.Equal(t, g.Players, loaded.Players)
		assert.Equal(t, g.Deck, loaded.Deck)
		assert.Equal(t, g.CurrentTurn, loaded.CurrentTurn)
		assert.Equal(t, scala40.PhaseDraw, loaded.Phase)
		assert.Equal(t, scala40.StatusPlaying, loaded.Status)
		assert.Empty(t, scala40.CheckIntegrity(loaded))
	})

	t.Run("mid round snapshot", func(t *testing.T) {
		g := midRoundGame(t, s)
		require.NoError(t, s.Save(ctx, g))
		loaded, err := s.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g, loaded)

		loaded.Status = scala40.StatusFinished
		loaded.Winner = "alice"
		loaded.DrawnFromDiscard = nil
		loaded.PendingWild = nil
		require.NoError(t, s.Save(ctx, loaded))
		finished, err := s.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, loaded, finished)
	})

	t.Run("save bumps version", func(t *testing.T) {
		g := dealtGame(t, s)
		before := g.Version
		require.NoError(t, s.Save(ctx, g))
		assert.Equal(t, before+1, g.Version)

		loaded, err := s.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.Version, loaded.Version)
	})

	t.Run("stale write is rejected", func(t *testing.T) {
		g := dealtGame(t, s)
		first, err := s.Load(ctx, g.ID)
		require.NoError(t, err)
		second, err := s.Load(ctx, g.ID)
		require.NoError(t, err)

		first.RoundNumber = 7
		require.NoError(t, s.Save(ctx, first))

		second.RoundNumber = 9
		err = s.Save(ctx, second)
		assert.True(t, errors.Is(err, scala40.ErrVersionConflict), "got %v", err)

		loaded, err := s.Load(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, loaded.RoundNumber)
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		g := dealtGame(t, s)
		fresh := g.Clone()
		fresh.Version = 0
		assert.ErrorIs(t, s.Save(ctx, fresh), scala40.ErrVersionConflict)
	})

	t.Run("list and delete", func(t *testing.T) {
		g := dealtGame(t, s)
		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, g.ID)

		require.NoError(t, s.Delete(ctx, g.ID))
		_, err = s.Load(ctx, g.ID)
		assert.ErrorIs(t, err, scala40.ErrGameNotFound)
		assert.ErrorIs(t, s.Delete(ctx, g.ID), scala40.ErrGameNotFound)
	})
}

func testLobbyStore(t *testing.T, s lobby.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	l := &lobby.Lobby{
		ID:        "lobby-1",
		Code:      "ABC234",
		Host:      "alice",
		Players:   []lobby.Seat{{PlayerID: "alice", JoinedAt: now}},
		Status:    lobby.StatusWaiting,
		Settings:  scala40.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.SaveLobby(ctx, l))

	byID, err := s.LoadLobby(ctx, "lobby-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC234", byID.Code)
	assert.Equal(t, []string{"alice"}, byID.PlayerIDs())

	byCode, err := s.LoadLobbyByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "lobby-1", byCode.ID)

	used, err := s.UsedCodes(ctx)
	require.NoError(t, err)
	assert.True(t, used["ABC234"])

	l.Status = lobby.StatusClosed
	require.NoError(t, s.SaveLobby(ctx, l))
	_, err = s.LoadLobbyByCode(ctx, "ABC234")
	assert.ErrorIs(t, err, lobby.ErrLobbyNotFound)

	_, err = s.LoadLobby(ctx, "nope")
	assert.ErrorIs(t, err, lobby.ErrLobbyNotFound)
}

func TestMemoryStore(t *testing.T) {
	testGameStore(t, store.NewMemoryStore())
}

func TestMemoryLobbyStore(t *testing.T) {
	testLobbyStore(t, store.NewMemoryStore())
}

func TestMemoryStoreCopiesState(t *testing.T) {
	assert := assert.New(t)
	s := store.NewMemoryStore()
	g := dealtGame(t, s)

	g.Players[0].Hand = nil
	g.Deck[0] = game.NewWild(0)

	loaded, err := s.Load(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Len(loaded.Players[0].Hand, game.CardsPerHand)
	assert.Empty(scala40.CheckIntegrity(loaded))
}

func openSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "scala40.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	testGameStore(t, openSQLite(t))
}

func TestSQLiteLobbyStore(t *testing.T) {
	testLobbyStore(t, openSQLite(t))
}

func TestSweepFinishedGames(t *testing.T) {
	ctx := context.Background()
	backends := map[string]interface {
		store.GameStore
		DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
	}{
		"memory": store.NewMemoryStore(),
		"sqlite": openSQLite(t),
	}

	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			finished := dealtGame(t, s)
			finished.Status = scala40.StatusFinished
			finished.UpdatedAt = time.Now().Add(-48 * time.Hour)
			require.NoError(t, s.Save(ctx, finished))

			live := dealtGame(t, s)

			n, err := s.DeleteFinishedBefore(ctx, time.Now().Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = s.Load(ctx, finished.ID)
			assert.ErrorIs(t, err, scala40.ErrGameNotFound)
			_, err = s.Load(ctx, live.ID)
			assert.NoError(t, err)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), store.Options{Driver: "cassandra"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, store.NewMemoryStore().Ping(ctx))
	assert.NoError(t, openSQLite(t).Ping(ctx))
}

func TestOpenMemory(t *testing.T) {
	backend, err := store.Open(context.Background(), store.Options{Driver: "memory"})
	require.NoError(t, err)
	defer backend.Close()

	_, sweeps := backend.Games.(store.Sweeper)
	assert.True(t, sweeps)
	assert.NoError(t, backend.Games.Ping(context.Background()))
}
