// Package transport describes the remote game server as the client side sees it.
package transport

import (
	"context"

	"github.com/rocketscienceinc/catan-players/internal/entity"
)

// Stream is a live, ordered subscription. Recv returns io.EOF once the server
// closes it.
type Stream interface {
	Recv() (entity.GameUpdate, error)
	Close() error
}

// Connection is a handle to the remote game server.
type Connection interface {
	CreateGame(ctx context.Context) (string, error)
	StartGame(ctx context.Context, gameID string) error
	Subscribe(ctx context.Context, sub entity.Subscription) (Stream, error)
	TakeAction(ctx context.Context, req entity.MoveRequest) error
	GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error)
	Close() error
}
