// Package fakeserver is an in-memory game server for tests. It never applies
// game rules: tests decide what is broadcast and when streams end.
package fakeserver

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/transport"
)

const streamBuffer = 1024

type item struct {
	update entity.GameUpdate
	err    error
}

type game struct {
	id          string
	status      string
	subscribers map[*stream]struct{}
	states      map[int]*entity.GameState
}

type Server struct {
	mu       sync.Mutex
	seq      int
	games    map[string]*game
	actions  []entity.MoveRequest
	onAction func(req entity.MoveRequest)
	onStart  func(gameID string)
}

func New() *Server {
	return &Server{games: make(map[string]*game)}
}

// OnAction - registers a hook called after every accepted action.
func (that *Server) OnAction(hook func(req entity.MoveRequest)) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.onAction = hook
}

// OnStart - registers a hook called after a game is started.
func (that *Server) OnStart(hook func(gameID string)) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.onStart = hook
}

func (that *Server) CreateGame(_ context.Context) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.seq++
	id := fmt.Sprintf("G%d", that.seq)
	that.games[id] = &game{
		id:          id,
		status:      entity.StatusWaiting,
		subscribers: make(map[*stream]struct{}),
		states:      make(map[int]*entity.GameState),
	}

	return id, nil
}

func (that *Server) StartGame(_ context.Context, gameID string) error {
	that.mu.Lock()
	g, ok := that.games[gameID]
	if !ok {
		that.mu.Unlock()
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}
	g.status = entity.StatusOngoing
	hook := that.onStart
	that.mu.Unlock()

	if hook != nil {
		hook(gameID)
	}

	return nil
}

func (that *Server) Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	g, ok := that.games[sub.GameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, sub.GameID)
	}

	s := &stream{
		server: that,
		ctx:    ctx,
		gameID: sub.GameID,
		sub:    sub,
		items:  make(chan item, streamBuffer),
	}
	g.subscribers[s] = struct{}{}

	return s, nil
}

func (that *Server) TakeAction(_ context.Context, req entity.MoveRequest) error {
	that.mu.Lock()
	if _, ok := that.games[req.GameID]; !ok {
		that.mu.Unlock()
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, req.GameID)
	}
	that.actions = append(that.actions, req)
	hook := that.onAction
	that.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	return nil
}

func (that *Server) GetState(_ context.Context, gameID string, position int) (*entity.GameState, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	g, ok := that.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	if state, ok := g.states[position]; ok {
		return state, nil
	}

	return &entity.GameState{
		GameID:     gameID,
		Position:   position,
		Status:     g.status,
		LegalMoves: []entity.Move{{Action: entity.ActionEndTurn}},
	}, nil
}

func (that *Server) Close() error {
	return nil
}

// SetState - overrides the snapshot returned for one seat.
func (that *Server) SetState(gameID string, position int, state *entity.GameState) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if g, ok := that.games[gameID]; ok {
		g.states[position] = state
	}
}

// Broadcast - delivers an update to every current subscriber of the game.
func (that *Server) Broadcast(gameID string, update entity.GameUpdate) {
	that.push(gameID, item{update: update})
}

// Break - fails every current subscription of the game with err.
func (that *Server) Break(gameID string, err error) {
	that.push(gameID, item{err: err})
	that.CloseGame(gameID)
}

// CloseGame - ends every subscription of the game and marks it finished.
func (that *Server) CloseGame(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	g, ok := that.games[gameID]
	if !ok {
		return
	}

	g.status = entity.StatusFinished
	for s := range g.subscribers {
		close(s.items)
		delete(g.subscribers, s)
	}
}

func (that *Server) push(gameID string, it item) {
	that.mu.Lock()
	defer that.mu.Unlock()

	g, ok := that.games[gameID]
	if !ok {
		return
	}

	for s := range g.subscribers {
		s.items <- it
	}
}

// Subscribers - the number of open subscriptions of the game.
func (that *Server) Subscribers(gameID string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	if g, ok := that.games[gameID]; ok {
		return len(g.subscribers)
	}

	return 0
}

// WaitSubscribers - blocks until the game has at least n subscribers.
func (that *Server) WaitSubscribers(ctx context.Context, gameID string, n int) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for that.Subscribers(gameID) < n {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d subscribers of %s: %w", n, gameID, ctx.Err())
		case <-ticker.C:
		}
	}

	return nil
}

func (that *Server) Status(gameID string) string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if g, ok := that.games[gameID]; ok {
		return g.status
	}

	return ""
}

// Actions - every action received so far, in arrival order.
func (that *Server) Actions() []entity.MoveRequest {
	that.mu.Lock()
	defer that.mu.Unlock()

	actions := make([]entity.MoveRequest, len(that.actions))
	copy(actions, that.actions)

	return actions
}

func (that *Server) unsubscribe(s *stream) {
	that.mu.Lock()
	defer that.mu.Unlock()

	g, ok := that.games[s.gameID]
	if !ok {
		return
	}

	if _, ok = g.subscribers[s]; ok {
		delete(g.subscribers, s)
		close(s.items)
	}
}

type stream struct {
	server *Server
	ctx    context.Context //nolint: containedctx // the stream lives as long as its subscribe call
	gameID string
	sub    entity.Subscription
	items  chan item
	once   sync.Once
}

func (that *stream) Recv() (entity.GameUpdate, error) {
	select {
	case it, ok := <-that.items:
		if !ok {
			return nil, io.EOF
		}
		return it.update, it.err
	case <-that.ctx.Done():
		return nil, that.ctx.Err()
	}
}

func (that *stream) Close() error {
	that.once.Do(func() {
		that.server.unsubscribe(that)
	})

	return nil
}
