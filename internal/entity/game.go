package entity

import "encoding/json"

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// GameState is the authoritative snapshot the server returns for one seat.
type GameState struct {
	GameID     string          `json:"game_id"`
	Position   int             `json:"position"`
	Turn       int             `json:"turn"`
	Status     string          `json:"status,omitempty"`
	LegalMoves []Move          `json:"legal_moves,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (that *GameState) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *GameState) HasLegalMoves() bool {
	return len(that.LegalMoves) > 0
}
