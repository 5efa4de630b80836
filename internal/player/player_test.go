package player

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/strategy"
	"github.com/rocketscienceinc/catan-players/testing/fakeserver"
)

const waitTimeout = 2 * time.Second

type panicMover struct{}

func (panicMover) StatelessMove(strategy.Snapshot) (entity.Move, error) {
	panic("mover exploded")
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDone(t *testing.T, session *Session) {
	t.Helper()

	select {
	case <-session.Done():
	case <-time.After(waitTimeout):
		t.Fatalf("session %d did not finish", session.ID)
	}
}

func waitReady(t *testing.T, session *Session) {
	t.Helper()

	select {
	case <-session.Ready():
	case <-time.After(waitTimeout):
		t.Fatalf("session %d did not subscribe", session.ID)
	}
}

func newGame(t *testing.T, server *fakeserver.Server) string {
	t.Helper()

	gameID, err := server.CreateGame(context.Background())
	require.NoError(t, err)

	return gameID
}

func TestPlayer_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("Starts a tracked session without blocking", func(t *testing.T) {
		// Given: a player and a waiting game
		server := fakeserver.New()
		gameID := newGame(t, server)
		p := New(newLogger(), "alice", strategy.NewStateless(strategy.FirstMover{}), server)

		// When: the player takes seat 2
		session := p.Play(ctx, gameID, 2)

		// Then: the session is live, tracked, and subscribed
		waitReady(t, session)
		assert.Equal(t, 1, session.ID)
		assert.Equal(t, gameID, session.GameID)
		assert.Equal(t, 2, session.Position)
		assert.False(t, session.IsDone())
		assert.NoError(t, session.Err())
		assert.Equal(t, 1, p.Active())
		assert.Equal(t, 1, server.Subscribers(gameID))

		server.CloseGame(gameID)
		waitDone(t, session)
	})

	t.Run("Numbers sessions and prunes finished ones first", func(t *testing.T) {
		// Given: a player whose first game is over
		server := fakeserver.New()
		first := newGame(t, server)
		second := newGame(t, server)
		p := New(newLogger(), "bob", strategy.NewStateless(strategy.FirstMover{}), server)

		old := p.Play(ctx, first, 0)
		waitReady(t, old)
		server.CloseGame(first)
		waitDone(t, old)

		// When: the player joins another game
		next := p.Play(ctx, second, 1)
		waitReady(t, next)

		// Then: only the new session is tracked and the counter kept counting
		assert.Equal(t, 2, next.ID)
		assert.Equal(t, 2, p.Started())
		assert.Equal(t, []*Session{next}, p.Sessions())

		server.CloseGame(second)
		waitDone(t, next)
	})

	t.Run("Acts only when addressed", func(t *testing.T) {
		// Given: four players seated in one game
		server := fakeserver.New()
		gameID := newGame(t, server)
		shared := strategy.NewStateless(strategy.FirstMover{})

		sessions := make([]*Session, 0, 4)
		for position, name := range []string{"p0", "p1", "p2", "p3"} {
			p := New(newLogger(), name, shared, server)
			sessions = append(sessions, p.Play(ctx, gameID, position))
		}
		for _, session := range sessions {
			waitReady(t, session)
		}

		// When: the server asks seat 0 to act and then ends the game
		require.NoError(t, server.StartGame(ctx, gameID))
		server.Broadcast(gameID, &entity.ActionRequest{Position: 0, Type: entity.RequestTakeTurn})
		server.Broadcast(gameID, &entity.Event{Position: 0, Action: entity.ActionGameOver})
		for _, session := range sessions {
			waitDone(t, session)
			require.NoError(t, session.Err())
		}

		// Then: exactly one action was taken, by seat 0
		assert.Equal(t, []entity.MoveRequest{{
			GameID:   gameID,
			Position: 0,
			Move:     entity.Move{Action: entity.ActionEndTurn},
		}}, server.Actions())
	})
}

func TestPlayer_Flush(t *testing.T) {
	ctx := context.Background()

	t.Run("Removes sessions ended by game over", func(t *testing.T) {
		// Given: a player in a running game
		server := fakeserver.New()
		gameID := newGame(t, server)
		p := New(newLogger(), "carol", strategy.NewStateless(strategy.FirstMover{}), server)
		session := p.Play(ctx, gameID, 0)
		waitReady(t, session)

		// When: the server announces the end of the game
		server.Broadcast(gameID, &entity.Event{Position: 3, Action: entity.ActionEndTurn, Message: entity.GameOverMessage})
		waitDone(t, session)

		// Then: the next flush forgets the session
		assert.Equal(t, 1, p.Active())
		assert.Equal(t, 0, p.Flush())
		assert.Empty(t, p.Sessions())
		require.NoError(t, session.Err())
	})

	t.Run("Is idempotent", func(t *testing.T) {
		// Given: one finished and one live session
		server := fakeserver.New()
		done := newGame(t, server)
		live := newGame(t, server)
		p := New(newLogger(), "dave", strategy.NewStateless(strategy.FirstMover{}), server)

		finished := p.Play(ctx, done, 0)
		running := p.Play(ctx, live, 0)
		waitReady(t, finished)
		waitReady(t, running)
		server.CloseGame(done)
		waitDone(t, finished)

		// When: flushing twice in a row
		first := p.Flush()
		firstSessions := p.Sessions()
		second := p.Flush()
		secondSessions := p.Sessions()

		// Then: both flushes leave the same live set
		assert.Equal(t, 1, first)
		assert.Equal(t, first, second)
		assert.Equal(t, firstSessions, secondSessions)
		assert.Equal(t, []*Session{running}, secondSessions)

		server.CloseGame(live)
		waitDone(t, running)
	})

	t.Run("Prunes failed sessions", func(t *testing.T) {
		// Given: a session for a game the server does not know
		server := fakeserver.New()
		p := New(newLogger(), "erin", strategy.NewStateless(strategy.FirstMover{}), server)

		// When: the session runs
		session := p.Play(ctx, "missing", 0)
		waitDone(t, session)

		// Then: it failed with a transport error and flush removes it
		require.ErrorIs(t, session.Err(), apperror.ErrTransport)
		require.ErrorIs(t, session.Err(), apperror.ErrGameNotFound)
		assert.Equal(t, 0, p.Flush())
	})

	t.Run("Prunes sessions whose stream broke", func(t *testing.T) {
		// Given: a player in a running game
		server := fakeserver.New()
		gameID := newGame(t, server)
		p := New(newLogger(), "heidi", strategy.NewStateless(strategy.FirstMover{}), server)
		session := p.Play(ctx, gameID, 0)
		waitReady(t, session)

		// When: the server connection breaks mid-game
		server.Break(gameID, io.ErrUnexpectedEOF)
		waitDone(t, session)

		// Then: the session failed with a transport error and is pruned
		require.ErrorIs(t, session.Err(), apperror.ErrTransport)
		require.ErrorIs(t, session.Err(), io.ErrUnexpectedEOF)
		assert.Equal(t, 0, p.Flush())
	})

	t.Run("Prunes sessions whose strategy panicked", func(t *testing.T) {
		// Given: a player whose strategy panics when asked to move
		server := fakeserver.New()
		gameID := newGame(t, server)
		p := New(newLogger(), "frank", strategy.NewStateless(panicMover{}), server)
		session := p.Play(ctx, gameID, 1)
		waitReady(t, session)

		// When: the player is asked to act
		server.Broadcast(gameID, &entity.ActionRequest{Position: 1, Type: entity.RequestTakeTurn})
		waitDone(t, session)

		// Then: the panic becomes a strategy failure and nothing was sent
		require.ErrorIs(t, session.Err(), apperror.ErrStrategy)
		assert.Empty(t, server.Actions())
		assert.Equal(t, 0, p.Flush())
	})

	t.Run("Prunes sessions whose transport panicked", func(t *testing.T) {
		// Given: a server that panics while accepting an action
		server := fakeserver.New()
		server.OnAction(func(entity.MoveRequest) {
			panic("socket exploded")
		})
		gameID := newGame(t, server)
		p := New(newLogger(), "ivan", strategy.NewStateless(strategy.FirstMover{}), server)
		session := p.Play(ctx, gameID, 2)
		waitReady(t, session)

		// When: the player is asked to act
		server.Broadcast(gameID, &entity.ActionRequest{Position: 2, Type: entity.RequestTakeTurn})
		waitDone(t, session)

		// Then: the panic is reported as a session panic, not blamed on the strategy
		require.ErrorIs(t, session.Err(), apperror.ErrSessionPanic)
		assert.NotErrorIs(t, session.Err(), apperror.ErrStrategy)
		assert.Equal(t, 0, p.Flush())
	})

	t.Run("Is safe alongside concurrent plays", func(t *testing.T) {
		// Given: a player and a game
		server := fakeserver.New()
		gameID := newGame(t, server)
		p := New(newLogger(), "grace", strategy.NewStateless(strategy.FirstMover{}), server)

		// When: plays and flushes race each other
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				p.Play(ctx, gameID, i%4)
			}()
			go func() {
				defer wg.Done()
				p.Flush()
			}()
		}
		wg.Wait()

		// Then: every session is accounted for and all end with the game
		assert.Equal(t, 20, p.Started())
		sessions := p.Sessions()
		assert.Len(t, sessions, 20)
		for _, session := range sessions {
			waitReady(t, session)
		}
		server.CloseGame(gameID)
		for _, session := range sessions {
			waitDone(t, session)
		}
		assert.Equal(t, 0, p.Flush())
	})
}
