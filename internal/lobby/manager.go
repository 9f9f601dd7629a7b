package lobby

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusInGame  Status = "in_game"
	StatusClosed  Status = "closed"
)

var (
	ErrLobbyNotFound    = errors.New("LOBBY_NOT_FOUND: Lobby not found")
	ErrNotWaiting       = errors.New("LOBBY_NOT_WAITING: The lobby is not accepting changes")
	ErrLobbyFull        = errors.New("LOBBY_FULL: Lobby is full (4/4 players)")
	ErrAlreadyJoined    = errors.New("ALREADY_IN_LOBBY: You are already in this lobby")
	ErrNotInLobby       = errors.New("NOT_IN_LOBBY: You are not in this lobby")
	ErrNotHost          = errors.New("NOT_HOST: Only the host can start the game")
	ErrNotEnoughPlayers = errors.New("NOT_ENOUGH_PLAYERS: At least 2 players are needed")
	ErrNotAllReady      = errors.New("NOT_ALL_READY: Cannot start game, not all players ready")
	ErrEmptyPlayerID    = errors.New("INVALID_PLAYER: Player id is required")
)

type Seat struct {
	PlayerID string    `json:"userId"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Lobby struct {
	ID        string           `json:"lobbyId"`
	Code      string           `json:"code"`
	Host      string           `json:"hostUserId"`
	Players   []Seat           `json:"players"`
	Status    Status           `json:"status"`
	Settings  scala40.Settings `json:"settings"`
	GameID    string           `json:"gameId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (l *Lobby) Clone() *Lobby {
	c := *l
	c.Players = slices.Clone(l.Players)
	return &c
}

func (l *Lobby) seat(playerID string) int {
	return slices.IndexFunc(l.Players, func(s Seat) bool { return s.PlayerID == playerID })
}

func (l *Lobby) PlayerIDs() []string {
	ids := make([]string, len(l.Players))
	for i, s := range l.Players {
		ids[i] = s.PlayerID
	}
	return ids
}

func (l *Lobby) AllReady() bool {
	if len(l.Players) < game.MinPlayers {
		return false
	}
	for _, s := range l.Players {
		if !s.Ready {
			return false
		}
	}
	return true
}

type Store interface {
	SaveLobby(ctx context.Context, l *Lobby) error
	LoadLobby(ctx context.Context, lobbyID string) (*Lobby, error)
	LoadLobbyByCode(ctx context.Context, code string) (*Lobby, error)
	UsedCodes(ctx context.Context) (map[string]bool, error)
}

// GameStarter is the part of the engine a lobby needs. *scala40.Engine
// satisfies it.
type GameStarter interface {
	CreateGame(ctx context.Context, lobbyID string, playerIDs []string, settings scala40.Settings) (*scala40.GameState, error)
	StartRound(ctx context.Context, gameID string) (*scala40.Outcome, error)
}

// Manager runs the pre-game flow. Mutations are serialised by mu; the store
// is the source of truth.
type Manager struct {
	store Store
	games GameStarter
	log   *logrus.Entry
	rng   game.Rand
	mu    sync.Mutex
}

func NewManager(store Store, games GameStarter, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		store: store,
		games: games,
		log:   log,
		rng:   game.NewSecureRand(),
	}
}

// Create opens a lobby with host already seated.
func (m *Manager) Create(ctx context.Context, host string, settings scala40.Settings) (*Lobby, error) {
	if host == "" {
		return nil, ErrEmptyPlayerID
	}
	if settings.EliminationScore <= 0 {
		settings = scala40.DefaultSettings()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	used, err := m.store.UsedCodes(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	l := &Lobby{
		ID:        uuid.NewString(),
		Code:      GenerateCode(used, m.rng),
		Host:      host,
		Players:   []Seat{{PlayerID: host, JoinedAt: now}},
		Status:    StatusWaiting,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"lobbyId": l.ID, "code": l.Code, "host": host}).Info("lobby created")
	return l, nil
}

func (m *Manager) Join(ctx context.Context, code, playerID string) (*Lobby, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if playerID == "" {
		return nil, ErrEmptyPlayerID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.LoadLobbyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusWaiting {
		return nil, ErrNotWaiting
	}
	if l.seat(playerID) >= 0 {
		return nil, ErrAlreadyJoined
	}
	if len(l.Players) >= game.MaxPlayers {
		return nil, ErrLobbyFull
	}

	l.Players = append(l.Players, Seat{PlayerID: playerID, JoinedAt: time.Now()})
	l.UpdatedAt = time.Now()
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Leave removes a player. The lobby closes if the host leaves.
func (m *Manager) Leave(ctx context.Context, lobbyID, playerID string) (*Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.LoadLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	i := l.seat(playerID)
	if i < 0 {
		return nil, ErrNotInLobby
	}

	if l.Host == playerID {
		l.Status = StatusClosed
	} else {
		l.Players = slices.Delete(l.Players, i, i+1)
	}
	l.UpdatedAt = time.Now()
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// SetReady records a player's ready flag and reports whether everyone is.
func (m *Manager) SetReady(ctx context.Context, lobbyID, playerID string, ready bool) (*Lobby, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.LoadLobby(ctx, lobbyID)
	if err != nil {
		return nil, false, err
	}
	if l.Status != StatusWaiting {
		return nil, false, ErrNotWaiting
	}
	i := l.seat(playerID)
	if i < 0 {
		return nil, false, ErrNotInLobby
	}

	l.Players[i].Ready = ready
	l.UpdatedAt = time.Now()
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return nil, false, err
	}
	return l, l.AllReady(), nil
}

// Start creates the game in seat order and deals the first smazzata. Only
// the host may start, and only once everyone is ready.
func (m *Manager) Start(ctx context.Context, lobbyID, playerID string) (*Lobby, *scala40.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.LoadLobby(ctx, lobbyID)
	if err != nil {
		return nil, nil, err
	}
	if l.Host != playerID {
		return nil, nil, ErrNotHost
	}
	if l.Status != StatusWaiting {
		return nil, nil, ErrNotWaiting
	}
	if len(l.Players) < game.MinPlayers {
		return nil, nil, ErrNotEnoughPlayers
	}
	if !l.AllReady() {
		return nil, nil, ErrNotAllReady
	}

	g, err := m.games.CreateGame(ctx, l.ID, l.PlayerIDs(), l.Settings)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := m.games.StartRound(ctx, g.ID)
	if err != nil {
		return nil, nil, err
	}

	l.Status = StatusInGame
	l.GameID = g.ID
	l.UpdatedAt = time.Now()
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return nil, nil, err
	}
	m.log.WithFields(logrus.Fields{"lobbyId": l.ID, "gameId": g.ID, "players": len(l.Players)}).Info("lobby started")
	return l, outcome, nil
}

func (m *Manager) Get(ctx context.Context, lobbyID string) (*Lobby, error) {
	return m.store.LoadLobby(ctx, lobbyID)
}

func (m *Manager) GetByCode(ctx context.Context, code string) (*Lobby, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return m.store.LoadLobbyByCode(ctx, code)
}
