// Package websocket talks to the game server over its HTTP API, with game
// updates streamed on a websocket per seat.
package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
	"github.com/rocketscienceinc/catan-players/internal/transport"
	"github.com/rocketscienceinc/catan-players/internal/transport/wire"
)

const (
	readLimit      = 1 << 20
	requestTimeout = 10 * time.Second
	closeTimeout   = time.Second
)

type createGameResponse struct {
	GameID string `json:"game_id"`
}

type Connection struct {
	baseURL *url.URL
	client  *http.Client
	dialer  *websocket.Dialer
}

// New - builds a connection to the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string) (*Connection, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	return &Connection{
		baseURL: parsed,
		client:  &http.Client{Timeout: requestTimeout},
		dialer:  websocket.DefaultDialer,
	}, nil
}

func (that *Connection) CreateGame(ctx context.Context) (string, error) {
	var resp createGameResponse
	if err := that.do(ctx, http.MethodPost, "/api/games", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	return resp.GameID, nil
}

func (that *Connection) StartGame(ctx context.Context, gameID string) error {
	if err := that.do(ctx, http.MethodPost, gamePath(gameID, "start"), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	return nil
}

func (that *Connection) TakeAction(ctx context.Context, req entity.MoveRequest) error {
	if err := that.do(ctx, http.MethodPost, gamePath(req.GameID, "actions"), nil, req, nil); err != nil {
		return fmt.Errorf("failed to send move: %w", err)
	}

	return nil
}

func (that *Connection) GetState(ctx context.Context, gameID string, position int) (*entity.GameState, error) {
	query := url.Values{"position": {strconv.Itoa(position)}}

	var state entity.GameState
	if err := that.do(ctx, http.MethodGet, gamePath(gameID, "state"), query, nil, &state); err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return &state, nil
}

func (that *Connection) Subscribe(ctx context.Context, sub entity.Subscription) (transport.Stream, error) {
	endpoint := that.endpoint(gamePath(sub.GameID, "subscribe"), url.Values{
		"player":   {sub.PlayerName},
		"position": {strconv.Itoa(sub.Position)},
	})

	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	conn, resp, err := that.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, sub.GameID)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint.Redacted(), err)
	}

	conn.SetReadLimit(readLimit)

	s := &stream{conn: conn, done: make(chan struct{})}
	go s.watch(ctx)

	return s, nil
}

func (that *Connection) Close() error {
	that.client.CloseIdleConnections()
	return nil
}

func (that *Connection) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, that.endpoint(path, query).String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := that.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, path)
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, readLimit))
		return fmt.Errorf("server responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (that *Connection) endpoint(path string, query url.Values) *url.URL {
	endpoint := *that.baseURL
	endpoint.Path += path
	endpoint.RawQuery = query.Encode()

	return &endpoint
}

func gamePath(gameID, action string) string {
	return "/api/games/" + url.PathEscape(gameID) + "/" + action
}

type stream struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (that *stream) Recv() (entity.GameUpdate, error) {
	var msg wire.Message
	if err := that.conn.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}

		select {
		case <-that.done:
			return nil, io.EOF
		default:
		}

		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %w", apperror.ErrProtocolViolation, err)
		}

		return nil, fmt.Errorf("failed to read update: %w", err)
	}

	return wire.Decode(msg)
}

// Close - says goodbye to the server and closes the socket. Safe to call more than once.
func (that *stream) Close() error {
	var err error

	that.once.Do(func() {
		close(that.done)

		_ = that.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(closeTimeout),
		)

		err = that.conn.Close()
	})

	return err
}

// watch - closes the socket when the subscribe context ends, which unblocks Recv.
func (that *stream) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = that.conn.Close()
	case <-that.done:
	}
}
