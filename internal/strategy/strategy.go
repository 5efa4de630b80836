package strategy

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/catan-players/internal/entity"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

const (
	RandomName = "random"
	FirstName  = "first"
)

// StateTracker caches what one client has seen of its game. A tracker is
// owned by exactly one client and is never shared.
type StateTracker interface {
	Update(update entity.GameUpdate)
	Refresh(state *entity.GameState)
}

// Strategy decides moves for clients. One instance may serve many clients at
// once, so implementations that keep cross-client data must guard it themselves.
type Strategy interface {
	NewStateTracker() StateTracker
	ShouldRequestState(tracker StateTracker) bool
	GetMove(tracker StateTracker) (entity.Move, error)
}

// New - builds a strategy by its configured name.
func New(name string) (Strategy, error) {
	switch name {
	case RandomName:
		return NewStateless(NewRandomMover()), nil
	case FirstName:
		return NewStateless(FirstMover{}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
