package entity

import "encoding/json"

// Move is the decision a strategy hands back. The payload is routed to the
// server untouched.
type Move struct {
	Action  ActionKind      `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MoveRequest struct {
	GameID   string `json:"game_id"`
	Position int    `json:"position"`
	Move     Move   `json:"move"`
}
