package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/catan-players/internal/config"
	"github.com/rocketscienceinc/catan-players/internal/player"
	"github.com/rocketscienceinc/catan-players/internal/simulation"
	"github.com/rocketscienceinc/catan-players/internal/strategy"
	"github.com/rocketscienceinc/catan-players/internal/transport"
	"github.com/rocketscienceinc/catan-players/internal/transport/grpc"
	"github.com/rocketscienceinc/catan-players/internal/transport/redis"
	"github.com/rocketscienceinc/catan-players/internal/transport/websocket"
)

var ErrAddrNotFound = errors.New("server address string is empty")

// RunApp - runs the configured number of games and waits for every player to finish.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, err := Dial(ctx, conf)
	if err != nil {
		return fmt.Errorf("could not connect to game server: %w", err)
	}

	defer func() {
		if err = conn.Close(); err != nil {
			log.Error("could not close server connection", "error", err)
		}
	}()

	players, err := NewPlayers(logger, conf.Simulation.Players, conn)
	if err != nil {
		return err
	}

	driver := simulation.New(logger, conn, players, simulation.Options{
		PollInterval: conf.Simulation.PollInterval,
		ReadyTimeout: conf.Simulation.ReadyTimeout,
	})

	log.Info("Starting simulation", "transport", conf.Transport, "games", conf.Simulation.Games, "players", len(players))

	ids, err := driver.Run(ctx, conf.Simulation.Games)
	if err != nil {
		return fmt.Errorf("simulation stopped after %d games: %w", len(ids), err)
	}

	return nil
}

// Dial - opens the connection for the configured transport.
func Dial(ctx context.Context, conf *config.Config) (transport.Connection, error) {
	switch conf.Transport {
	case config.TransportGRPC:
		addr := conf.GRPC.GetAddr()
		if conf.GRPC.Host == "" {
			return nil, ErrAddrNotFound
		}
		return grpc.Dial(addr)

	case config.TransportWebsocket:
		if conf.HTTP.URL == "" {
			return nil, ErrAddrNotFound
		}
		return websocket.New(conf.HTTP.URL)

	case config.TransportRedis:
		if conf.Redis.Host == "" {
			return nil, ErrAddrNotFound
		}
		return redis.New(ctx, conf.Redis.GetRedisAddr())
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, conf.Transport)
}

// NewPlayers - builds one player per configured seat, in seat order.
func NewPlayers(logger *slog.Logger, seats []config.Player, server transport.Connection) ([]*player.Player, error) {
	players := make([]*player.Player, 0, len(seats))

	for _, seat := range seats {
		strat, err := strategy.New(seat.Strategy)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", seat.Name, err)
		}

		players = append(players, player.New(logger, seat.Name, strat, server))
	}

	return players, nil
}
