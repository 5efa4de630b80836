package entity

// Subscription binds a named player to one seat of one game.
type Subscription struct {
	PlayerName string `json:"player_name"`
	GameID     string `json:"game_id"`
	Position   int    `json:"position"`
}
