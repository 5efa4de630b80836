// Package redis talks to a game server that shares state through Redis: game
// metadata and per-seat snapshots live in keys, moves are pushed to a list and
// updates are published on a per-game channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/transport"
	"github.com/rocketscienceinc/catan-players/internal/transport/wire"
)

const (
	gameSeqKey   = "games:seq"
	statusField  = "status"
	startCommand = "start"
)

func gameKey(gameID string) string { return "game:" + gameID }

func playersKey(gameID string) string { return gameKey(gameID) + ":players" }

func movesKey(gameID string) string { return gameKey(gameID) + ":moves" }

func updatesKey(gameID string) string { return gameKey(gameID) + ":updates" }

func controlKey(gameID string) string { return gameKey(gameID) + ":control" }

func stateKey(gameID string, position int) string {
	return gameKey(gameID) + ":state:" + strconv.Itoa(position)
}

type Connection struct {
	client *redis.Client
}

// New - connects to Redis and checks the connection.
func New(ctx context.Context, addr string) (*Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Connection{client: client}, nil
}

func (that *Connection) CreateGame(ctx context.Context) (string, error) {
	seq, err := that.client.Incr(ctx, gameSeqKey).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate game id: %w", err)
	}

	gameID := "G" + strconv.FormatInt(seq, 10)

	if err = that.client.HSet(ctx, gameKey(gameID), statusField, entity.StatusWaiting).Err(); err != nil {
		return "", fmt.Errorf("failed to create game %s: %w", gameID, err)
	}

	return gameID, nil
}

func (that *Connection) StartGame(ctx context.Context, gameID string) error {
	if err := that.ensureGame(ctx, gameID); err != nil {
		return err
	}

	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, gameKey(gameID), statusField, entity.StatusOngoing)
		pipe.Publish(ctx, controlKey(gameID), startCommand)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to start game %s: %w", gameID, err)
	}

	return nil
}

func (that *Connection) Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error) {
	if err := that.ensureGame(ctx, sub.GameID); err != nil {
		return nil, err
	}

	pubsub := that.client.Subscribe(ctx, updatesKey(sub.GameID))

	// wait for the confirmation so nothing published after Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", sub.GameID, err)
	}

	member := strconv.Itoa(sub.Position) + ":" + sub.PlayerName
	if err := that.client.SAdd(ctx, playersKey(sub.GameID), member).Err(); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to register player %s: %w", sub.PlayerName, err)
	}

	return &stream{ctx: ctx, pubsub: pubsub}, nil
}

func (that *Connection) TakeAction(ctx context.Context, req entity.MoveRequest) error {
	if err := that.ensureGame(ctx, req.GameID); err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal move: %w", err)
	}

	if err = that.client.RPush(ctx, movesKey(req.GameID), data).Err(); err != nil {
		return fmt.Errorf("failed to push move: %w", err)
	}

	return nil
}

func (that *Connection) GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error) {
	data, err := that.client.Get(ctx, stateKey(gameID, position)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: game %s position %d", apperror.ErrStateNotFound, gameID, position)
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state entity.GameState
	if err = json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal state: %w", apperror.ErrProtocolViolation, err)
	}

	return &state, nil
}

func (that *Connection) Close() error {
	if err := that.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func (that *Connection) ensureGame(ctx context.Context, gameID string) error {
	exists, err := that.client.Exists(ctx, gameKey(gameID)).Result()
	if err != nil {
		return fmt.Errorf("failed to look up game %s: %w", gameID, err)
	}

	if exists == 0 {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	return nil
}

type stream struct {
	ctx    context.Context //nolint: containedctx // the stream lives as long as its subscribe call
	pubsub *redis.PubSub

	mu     sync.Mutex
	closed bool
}

func (that *stream) Recv() (entity.GameUpdate, error) {
	msg, err := that.pubsub.ReceiveMessage(that.ctx)
	if err != nil {
		if that.isClosed() {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to receive update: %w", err)
	}

	return wire.DecodeBytes([]byte(msg.Payload))
}

func (that *stream) Close() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil
	}
	that.closed = true

	if err := that.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}

	return nil
}

func (that *stream) isClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}
