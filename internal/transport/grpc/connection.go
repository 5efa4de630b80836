// Package grpc talks to the game server over gRPC. Messages are plain Go
// structs carried by the JSON codec, so no generated stubs are needed.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/transport"
	"github.com/rocketscienceinc/catan-players/internal/transport/wire"
)

const ServiceName = "soc.protos.CatanServer"

const (
	MethodCreateGame = "/" + ServiceName + "/CreateGame"
	MethodStartGame  = "/" + ServiceName + "/StartGame"
	MethodSubscribe  = "/" + ServiceName + "/Subscribe"
	MethodMove       = "/" + ServiceName + "/Move"
	MethodGetState   = "/" + ServiceName + "/GetState"
)

type CreateGameRequest struct{}

type CreateGameResponse struct {
	GameID string `json:"game_id"`
}

type StartGameRequest struct {
	GameID string `json:"game_id"`
}

type StartGameResponse struct{}

type MoveResponse struct{}

type GetStateRequest struct {
	GameID   string `json:"game_id"`
	Position int    `json:"position"`
}

var subscribeDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

type Connection struct {
	conn *grpc.ClientConn
}

// Dial - opens a client connection. The connection is lazy: errors surface on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*Connection, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.JSONCodec{})),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return &Connection{conn: conn}, nil
}

func (that *Connection) CreateGame(ctx context.Context) (string, error) {
	var resp CreateGameResponse
	if err := that.conn.Invoke(ctx, MethodCreateGame, &CreateGameRequest{}, &resp); err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	return resp.GameID, nil
}

func (that *Connection) StartGame(ctx context.Context, gameID string) error {
	if err := that.conn.Invoke(ctx, MethodStartGame, &StartGameRequest{GameID: gameID}, &StartGameResponse{}); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	return nil
}

func (that *Connection) Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	cs, err := that.conn.NewStream(ctx, subscribeDesc, MethodSubscribe)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	// io.EOF means the server already ended the call; its status surfaces on Recv
	if err = cs.SendMsg(&sub); err != nil && !errors.Is(err, io.EOF) {
		cancel()
		return nil, fmt.Errorf("failed to send subscription: %w", err)
	}

	if err = cs.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}

	return &stream{cs: cs, cancel: cancel}, nil
}

func (that *Connection) TakeAction(ctx context.Context, req entity.MoveRequest) error {
	if err := that.conn.Invoke(ctx, MethodMove, &req, &MoveResponse{}); err != nil {
		return fmt.Errorf("failed to send move: %w", err)
	}

	return nil
}

func (that *Connection) GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error) {
	var state entity.GameState
	if err := that.conn.Invoke(ctx, MethodGetState, &GetStateRequest{GameID: gameID, Position: position}, &state); err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return &state, nil
}

func (that *Connection) Close() error {
	if err := that.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}

type stream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

func (that *stream) Recv() (entity.GameUpdate, error) {
	var msg wire.Message
	if err := that.cs.RecvMsg(&msg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to receive update: %w", err)
	}

	return wire.Decode(msg)
}

// Close - cancels the call, which releases the underlying HTTP/2 stream.
func (that *stream) Close() error {
	that.cancel()
	return nil
}
