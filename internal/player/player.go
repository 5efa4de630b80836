package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/client"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/strategy"
	"github.com/rocketscienceinc/catan-players/internal/transport"
)

type gameServer interface {
	Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error)
	TakeAction(ctx context.Context, req entity.MoveRequest) error
	GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error)
}

// Session is the handle of one running client.
type Session struct {
	ID       int
	GameID   string
	Position int

	client *client.Client
	done   chan struct{}
	err    error
}

// Done - is closed by the session itself when its client returns.
func (that *Session) Done() <-chan struct{} {
	return that.done
}

// Ready - is closed once the client has subscribed, or gave up trying.
func (that *Session) Ready() <-chan struct{} {
	return that.client.Subscribed()
}

func (that *Session) IsDone() bool {
	select {
	case <-that.done:
		return true
	default:
		return false
	}
}

// Err - the error the session ended with. Only meaningful after Done.
func (that *Session) Err() error {
	if !that.IsDone() {
		return nil
	}

	return that.err
}

func (that *Session) State() client.State {
	return that.client.State()
}

// Player is one named participant playing any number of games at once.
type Player struct {
	logger   *slog.Logger
	name     string
	strategy strategy.Strategy
	server   gameServer

	mu       sync.Mutex
	sessions []*Session
	counter  int
}

func New(logger *slog.Logger, name string, strategy strategy.Strategy, server gameServer) *Player {
	return &Player{
		logger:   logger.With("component", "player", "player", name),
		name:     name,
		strategy: strategy,
		server:   server,
	}
}

func (that *Player) Name() string {
	return that.name
}

// Play - starts a new session for the seat and returns without waiting for it.
func (that *Player) Play(ctx context.Context, gameID string, position int) *Session {
	that.Flush()

	c := client.New(that.logger, that.server, that.strategy, client.Binding{
		PlayerName: that.name,
		GameID:     gameID,
		Position:   position,
	})

	that.mu.Lock()
	that.counter++
	session := &Session{
		ID:       that.counter,
		GameID:   gameID,
		Position: position,
		client:   c,
		done:     make(chan struct{}),
	}
	that.sessions = append(that.sessions, session)
	that.mu.Unlock()

	that.logger.Info("session started", "session", session.ID, "gameID", gameID, "position", position)

	go that.run(ctx, session)

	return session
}

func (that *Player) run(ctx context.Context, session *Session) {
	log := that.logger.With("session", session.ID, "gameID", session.GameID, "position", session.Position)

	defer close(session.done)
	defer func() {
		if r := recover(); r != nil {
			session.err = fmt.Errorf("%w: %v", apperror.ErrSessionPanic, r)
			log.Error("session panicked", "error", session.err)
		}
	}()

	session.err = session.client.Run(ctx)
	if session.err != nil {
		log.Error("session failed", "error", session.err)
		return
	}

	log.Info("session finished")
}

// Flush - forgets every finished session and returns how many are still tracked.
func (that *Player) Flush() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	live := that.sessions[:0]
	for _, session := range that.sessions {
		if !session.IsDone() {
			live = append(live, session)
		}
	}

	// drop references held by the tail of the reused array
	for i := len(live); i < len(that.sessions); i++ {
		that.sessions[i] = nil
	}

	that.sessions = live

	return len(that.sessions)
}

// Active - the number of tracked sessions, finished or not, since the last flush.
func (that *Player) Active() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.sessions)
}

// Sessions - a snapshot of the tracked sessions.
func (that *Player) Sessions() []*Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	sessions := make([]*Session, len(that.sessions))
	copy(sessions, that.sessions)

	return sessions
}

// Started - the number of sessions ever started by this player.
func (that *Player) Started() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.counter
}
