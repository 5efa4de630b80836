package strategy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/catan-players/internal/entity"
)

var ErrForeignTracker = errors.New("tracker was not created by this strategy")

// Snapshot is everything a stateless tracker remembers.
type Snapshot struct {
	Last  entity.GameUpdate
	State *entity.GameState
}

// StatelessMover picks a move from the latest snapshot alone.
type StatelessMover interface {
	StatelessMove(snapshot Snapshot) (entity.Move, error)
}

// StatelessTracker keeps only the last update and the last fetched state.
type StatelessTracker struct {
	mu       sync.Mutex
	snapshot Snapshot
}

func (that *StatelessTracker) Update(update entity.GameUpdate) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.snapshot.Last = update
}

func (that *StatelessTracker) Refresh(state *entity.GameState) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.snapshot.State = state
}

func (that *StatelessTracker) Current() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshot
}

// Stateless always asks for the authoritative state and hands it to a mover.
type Stateless struct {
	mover StatelessMover
}

func NewStateless(mover StatelessMover) *Stateless {
	return &Stateless{mover: mover}
}

func (that *Stateless) NewStateTracker() StateTracker {
	return &StatelessTracker{}
}

func (that *Stateless) ShouldRequestState(StateTracker) bool {
	return true
}

func (that *Stateless) GetMove(tracker StateTracker) (entity.Move, error) {
	stateless, ok := tracker.(*StatelessTracker)
	if !ok {
		return entity.Move{}, fmt.Errorf("%w: %T", ErrForeignTracker, tracker)
	}

	move, err := that.mover.StatelessMove(stateless.Current())
	if err != nil {
		return entity.Move{}, fmt.Errorf("failed to pick move: %w", err)
	}

	return move, nil
}
