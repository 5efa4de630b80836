package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/catan-players/internal/player"
)

var ErrNoPlayers = errors.New("simulation has no players")

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultReadyTimeout = 5 * time.Second
)

type gameServer interface {
	CreateGame(ctx context.Context) (string, error)
	StartGame(ctx context.Context, gameID string) error
}

type Options struct {
	// PollInterval is how often Wait flushes the players.
	PollInterval time.Duration
	// ReadyTimeout bounds the wait for seated clients to subscribe before a game starts.
	ReadyTimeout time.Duration
}

// Driver creates games, seats the players and waits for them to finish.
type Driver struct {
	logger  *slog.Logger
	server  gameServer
	players []*player.Player
	options Options
}

func New(logger *slog.Logger, server gameServer, players []*player.Player, options Options) *Driver {
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}

	if options.ReadyTimeout <= 0 {
		options.ReadyTimeout = defaultReadyTimeout
	}

	return &Driver{
		logger:  logger.With("component", "simulation"),
		server:  server,
		players: players,
		options: options,
	}
}

func (that *Driver) CreateGame(ctx context.Context) (string, error) {
	gameID, err := that.server.CreateGame(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	return gameID, nil
}

func (that *Driver) StartGame(ctx context.Context, gameID string) error {
	if err := that.server.StartGame(ctx, gameID); err != nil {
		return fmt.Errorf("failed to start game %s: %w", gameID, err)
	}

	return nil
}

// Seat - the i-th player takes position i in the game.
func (that *Driver) Seat(ctx context.Context, gameID string, players []*player.Player) []*player.Session {
	sessions := make([]*player.Session, 0, len(players))
	for position, p := range players {
		sessions = append(sessions, p.Play(ctx, gameID, position))
	}

	return sessions
}

// RunGame - creates a game, seats every player, and starts it once the seats are subscribed.
func (that *Driver) RunGame(ctx context.Context) (string, error) {
	if len(that.players) == 0 {
		return "", ErrNoPlayers
	}

	gameID, err := that.CreateGame(ctx)
	if err != nil {
		return "", err
	}

	log := that.logger.With("gameID", gameID)

	sessions := that.Seat(ctx, gameID, that.players)
	if err = that.awaitReady(ctx, sessions); err != nil {
		log.Warn("starting game before every seat subscribed", "error", err)
	}

	if err = that.StartGame(ctx, gameID); err != nil {
		return gameID, err
	}

	log.Info("game started", "players", len(sessions))

	return gameID, nil
}

// Run - plays the given number of games back to back, then waits for all of them.
func (that *Driver) Run(ctx context.Context, games int) ([]string, error) {
	ids := make([]string, 0, games)

	for range games {
		gameID, err := that.RunGame(ctx)
		if err != nil {
			return ids, err
		}

		ids = append(ids, gameID)
	}

	if err := that.Wait(ctx); err != nil {
		return ids, err
	}

	that.logger.Info("simulation finished", "games", len(ids))

	return ids, nil
}

// Wait - blocks until no player has a live session.
func (that *Driver) Wait(ctx context.Context) error {
	ticker := time.NewTicker(that.options.PollInterval)
	defer ticker.Stop()

	for {
		active := that.Flush()
		if active == 0 {
			return nil
		}

		that.logger.Debug("waiting for sessions", "active", active)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d sessions: %w", active, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Flush - flushes every player and returns the number of live sessions left.
func (that *Driver) Flush() int {
	active := 0
	for _, p := range that.players {
		active += p.Flush()
	}

	return active
}

func (that *Driver) awaitReady(ctx context.Context, sessions []*player.Session) error {
	ctx, cancel := context.WithTimeout(ctx, that.options.ReadyTimeout)
	defer cancel()

	for _, session := range sessions {
		select {
		case <-session.Ready():
		case <-ctx.Done():
			return fmt.Errorf("session %d at position %d: %w", session.ID, session.Position, ctx.Err())
		}
	}

	return nil
}
