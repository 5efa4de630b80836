package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	TransportGRPC      = "grpc"
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
)

const defaultStrategy = "random"

var defaultPlayerNames = []string{"red", "blue", "white", "orange"}

var (
	ErrUnknownTransport = errors.New("unknown transport")
	ErrNoGames          = errors.New("simulation must run at least one game")
)

type Config struct {
	LogLevel   string     `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Transport  string     `yaml:"transport" env:"TRANSPORT" env-default:"grpc"`
	GRPC       GRPC       `yaml:"grpc"`
	HTTP       HTTP       `yaml:"http"`
	Redis      Redis      `yaml:"redis"`
	Simulation Simulation `yaml:"simulation"`
}

type GRPC struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

type HTTP struct {
	URL string `yaml:"url" env:"HTTP_URL" env-default:"http://localhost:8080"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Simulation struct {
	Games        int           `yaml:"games" env:"SIMULATION_GAMES" env-default:"1"`
	PollInterval time.Duration `yaml:"poll-interval" env-default:"100ms"`
	ReadyTimeout time.Duration `yaml:"ready-timeout" env-default:"5s"`
	Players      []Player      `yaml:"players"`
}

type Player struct {
	Name     string `yaml:"name"`
	Strategy string `yaml:"strategy"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads the file, applies env overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate - checks the values a run cannot start without.
func (that *Config) Validate() error {
	switch that.Transport {
	case TransportGRPC, TransportWebsocket, TransportRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, that.Transport)
	}

	if that.Simulation.Games < 1 {
		return ErrNoGames
	}

	return nil
}

func (that *Config) applyDefaults() {
	if len(that.Simulation.Players) == 0 {
		for _, name := range defaultPlayerNames {
			that.Simulation.Players = append(that.Simulation.Players, Player{Name: name})
		}
	}

	for i := range that.Simulation.Players {
		p := &that.Simulation.Players[i]
		if p.Strategy == "" {
			p.Strategy = defaultStrategy
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("player-%d", i)
		}
	}
}

func (that *GRPC) GetAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
