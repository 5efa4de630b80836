package entity

// GameOverMessage is the free-text marker the server puts on the final event of a game.
const GameOverMessage = "GAME OVER"

type ActionKind string

const (
	ActionRollDice        ActionKind = "roll_dice"
	ActionBuildSettlement ActionKind = "build_settlement"
	ActionBuildCity       ActionKind = "build_city"
	ActionBuildRoad       ActionKind = "build_road"
	ActionBuyDevCard      ActionKind = "buy_development_card"
	ActionPlayDevCard     ActionKind = "play_development_card"
	ActionTrade           ActionKind = "trade"
	ActionMoveRobber      ActionKind = "move_robber"
	ActionDiscard         ActionKind = "discard"
	ActionEndTurn         ActionKind = "end_turn"
	ActionGameOver        ActionKind = "game_over"
)

type RequestKind string

const (
	RequestPlaceSettlement RequestKind = "place_settlement"
	RequestPlaceRoad       RequestKind = "place_road"
	RequestTakeTurn        RequestKind = "take_turn"
	RequestMoveRobber      RequestKind = "move_robber"
	RequestDiscard         RequestKind = "discard"
	RequestRespondTrade    RequestKind = "respond_trade"
)

// GameUpdate is one message of a subscription stream. It is either an *Event
// or an *ActionRequest; no other type implements it.
type GameUpdate interface {
	isGameUpdate()
}

// Event notifies every subscriber of an action that has already happened.
type Event struct {
	Position int        `json:"position"`
	Action   ActionKind `json:"action"`
	Message  string     `json:"message,omitempty"`
}

func (*Event) isGameUpdate() {}

// IsTerminal reports whether the event ends the game. Both the dedicated
// game_over action and the legacy "GAME OVER" message text are honoured.
func (that *Event) IsTerminal() bool {
	return that.Action == ActionGameOver || that.Message == GameOverMessage
}

// ActionRequest asks the participant seated at Position to act.
type ActionRequest struct {
	Position int         `json:"position"`
	Type     RequestKind `json:"type"`
}

func (*ActionRequest) isGameUpdate() {}

// IsAddressedTo reports whether the request targets the given seat.
func (that *ActionRequest) IsAddressedTo(position int) bool {
	return that.Position == position
}
