package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rocketscienceinc/catan-players/internal/apperror"
	"github.com/rocketscienceinc/catan-players/internal/entity"
)

const (
	ActionEvent   = "event"
	ActionRequest = "action_request"
	// ActionClose marks the end of a stream on transports that cannot close one themselves.
	ActionClose = "close"
)

// Message is a GameUpdate on the wire: the action names the variant and the
// payload carries it.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode - wraps a game update into a wire message.
func Encode(update entity.GameUpdate) (Message, error) {
	var action string

	switch update.(type) {
	case *entity.Event:
		action = ActionEvent
	case *entity.ActionRequest:
		action = ActionRequest
	default:
		return Message{}, fmt.Errorf("%w: cannot encode %T", apperror.ErrProtocolViolation, update)
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s: %w", action, err)
	}

	return Message{Action: action, Payload: payload}, nil
}

// CloseMessage - the message that ends a stream.
func CloseMessage() Message {
	return Message{Action: ActionClose}
}

// Decode - turns a wire message into exactly one GameUpdate variant. A close
// message yields io.EOF.
func Decode(msg Message) (entity.GameUpdate, error) {
	if msg.Action == ActionClose {
		return nil, io.EOF
	}

	if payload := bytes.TrimSpace(msg.Payload); len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, fmt.Errorf("%w: %q message without payload", apperror.ErrProtocolViolation, msg.Action)
	}

	var update entity.GameUpdate

	switch msg.Action {
	case ActionEvent:
		update = &entity.Event{}
	case ActionRequest:
		update = &entity.ActionRequest{}
	default:
		return nil, fmt.Errorf("%w: unknown action %q", apperror.ErrProtocolViolation, msg.Action)
	}

	if err := json.Unmarshal(msg.Payload, update); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal %s: %w", apperror.ErrProtocolViolation, msg.Action, err)
	}

	return update, nil
}

// DecodeBytes - parses raw JSON bytes and decodes them.
func DecodeBytes(data []byte) (entity.GameUpdate, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal message: %w", apperror.ErrProtocolViolation, err)
	}

	return Decode(msg)
}

// EncodeBytes - encodes an update straight to JSON bytes.
func EncodeBytes(update entity.GameUpdate) ([]byte, error) {
	msg, err := Encode(update)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
