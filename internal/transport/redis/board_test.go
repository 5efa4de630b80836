package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/transport/wire"
)

// board plays the server half of the protocol: it publishes updates, stores
// snapshots and reads back what the players wrote.
type board struct {
	client *redis.Client
}

func (that *board) Publish(ctx context.Context, gameID string, update entity.GameUpdate) error {
	data, err := wire.EncodeBytes(update)
	if err != nil {
		return err
	}

	return that.client.Publish(ctx, updatesKey(gameID), data).Err()
}

// EndGame - publishes the close message that ends every stream of the game.
func (that *board) EndGame(ctx context.Context, gameID string) error {
	data, err := json.Marshal(wire.CloseMessage())
	if err != nil {
		return fmt.Errorf("failed to marshal close message: %w", err)
	}

	return that.client.Publish(ctx, updatesKey(gameID), data).Err()
}

func (that *board) PutState(ctx context.Context, state *entity.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return that.client.Set(ctx, stateKey(state.GameID, state.Position), data, 0).Err()
}

func (that *board) Moves(ctx context.Context, gameID string) ([]entity.MoveRequest, error) {
	raw, err := that.client.LRange(ctx, movesKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	moves := make([]entity.MoveRequest, 0, len(raw))
	for _, item := range raw {
		var move entity.MoveRequest
		if err = json.Unmarshal([]byte(item), &move); err != nil {
			return nil, fmt.Errorf("failed to unmarshal move: %w", err)
		}
		moves = append(moves, move)
	}

	return moves, nil
}

func (that *board) Status(ctx context.Context, gameID string) (string, error) {
	return that.client.HGet(ctx, gameKey(gameID), statusField).Result()
}

func (that *board) Players(ctx context.Context, gameID string) ([]string, error) {
	members, err := that.client.SMembers(ctx, playersKey(gameID)).Result()
	if err != nil {
		return nil, err
	}

	sort.Strings(members)

	return members, nil
}
