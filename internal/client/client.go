package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/strategy"
	"github.com/rocketscienceinc/catan-players/internal/transport"
)

type State int32

const (
	StateCreated State = iota
	StateSubscribed
	StateReacting
	StateTerminated
)

func (that State) String() string {
	switch that {
	case StateCreated:
		return "created"
	case StateSubscribed:
		return "subscribed"
	case StateReacting:
		return "reacting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(that))
	}
}

type gameServer interface {
	Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error)
	TakeAction(ctx context.Context, req entity.MoveRequest) error
	GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error)
}

// Binding identifies the seat a client plays.
type Binding struct {
	PlayerName string
	GameID     string
	Position   int
}

// Client runs one player's session in one game. It is single use: Run may be
// called once.
type Client struct {
	logger   *slog.Logger
	server   gameServer
	strategy strategy.Strategy
	binding  Binding

	started       atomic.Bool
	state         atomic.Int32
	subscribed    chan struct{}
	subscribeOnce sync.Once
}

func New(logger *slog.Logger, server gameServer, strategy strategy.Strategy, binding Binding) *Client {
	return &Client{
		logger: logger.With(
			"component", "client",
			"player", binding.PlayerName,
			"gameID", binding.GameID,
			"position", binding.Position,
		),
		server:     server,
		strategy:   strategy,
		binding:    binding,
		subscribed: make(chan struct{}),
	}
}

func (that *Client) State() State {
	return State(that.state.Load())
}

// Subscribed - is closed once the subscription is open, or when Run gives up before that.
func (that *Client) Subscribed() <-chan struct{} {
	return that.subscribed
}

// Run - subscribes to the game and reacts to every update until the game ends,
// the server closes the stream, or an error occurs.
func (that *Client) Run(ctx context.Context) error {
	if !that.started.CompareAndSwap(false, true) {
		return fmt.Errorf("client already %s", that.State())
	}
	defer that.state.Store(int32(StateTerminated))
	defer that.markSubscribed()

	tracker := that.strategy.NewStateTracker()

	stream, err := that.server.Subscribe(ctx, entity.Subscription{
		PlayerName: that.binding.PlayerName,
		GameID:     that.binding.GameID,
		Position:   that.binding.Position,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to subscribe: %w", apperror.ErrTransport, err)
	}

	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			that.logger.Debug("failed to close stream", "error", closeErr)
		}
	}()

	that.state.Store(int32(StateSubscribed))
	that.markSubscribed()
	that.logger.Info("subscribed")

	return that.consume(ctx, stream, tracker)
}

func (that *Client) consume(ctx context.Context, stream transport.Stream, tracker strategy.StateTracker) error {
	for {
		update, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			that.logger.Info("stream closed by server")
			return nil
		}

		if err != nil {
			if errors.Is(err, apperror.ErrProtocolViolation) {
				return err
			}

			return fmt.Errorf("%w: failed to receive update: %w", apperror.ErrTransport, err)
		}

		that.state.Store(int32(StateReacting))

		done, err := that.react(ctx, update, tracker)
		if err != nil {
			return err
		}

		if done {
			that.logger.Info("game over")
			return nil
		}
	}
}

// react - handles one update; done reports a terminal event.
func (that *Client) react(ctx context.Context, update entity.GameUpdate, tracker strategy.StateTracker) (bool, error) {
	switch msg := update.(type) {
	case *entity.Event:
		tracker.Update(msg)
		return msg.IsTerminal(), nil

	case *entity.ActionRequest:
		if !msg.IsAddressedTo(that.binding.Position) {
			return false, nil
		}

		tracker.Update(msg)

		return false, that.act(ctx, msg, tracker)

	default:
		return false, fmt.Errorf("%w: unexpected update %T", apperror.ErrProtocolViolation, update)
	}
}

func (that *Client) act(ctx context.Context, request *entity.ActionRequest, tracker strategy.StateTracker) error {
	log := that.logger.With("method", "act", "request", request.Type)

	var refresh bool
	if err := guardStrategy(func() error {
		refresh = that.strategy.ShouldRequestState(tracker)
		return nil
	}); err != nil {
		return err
	}

	if refresh {
		state, err := that.server.GetState(ctx, that.binding.GameID, that.binding.Position)
		if err != nil {
			return fmt.Errorf("%w: failed to get state: %w", apperror.ErrTransport, err)
		}

		tracker.Refresh(state)
	}

	var move entity.Move
	if err := guardStrategy(func() error {
		var moveErr error
		move, moveErr = that.strategy.GetMove(tracker)
		return moveErr
	}); err != nil {
		return err
	}

	err := that.server.TakeAction(ctx, entity.MoveRequest{
		GameID:   that.binding.GameID,
		Position: that.binding.Position,
		Move:     move,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to take action: %w", apperror.ErrTransport, err)
	}

	log.Debug("action taken", "action", move.Action)

	return nil
}

func (that *Client) markSubscribed() {
	that.subscribeOnce.Do(func() {
		close(that.subscribed)
	})
}

// guardStrategy - runs a strategy call, turning its error or panic into ErrStrategy.
func guardStrategy(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered from panic: %v", apperror.ErrStrategy, r)
		}
	}()

	if err = call(); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrStrategy, err)
	}

	return nil
}
