package strategy

import (
	"errors"
	"math/rand"

	"github.com/rocketscienceinc/catan-players/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// RandomMover picks uniformly among the legal moves of the snapshot.
type RandomMover struct {
	intn func(n int) int
}

func NewRandomMover() *RandomMover {
	// top-level math/rand functions are safe for concurrent use
	return &RandomMover{intn: rand.Intn} //nolint: gosec // it's ok
}

func (that *RandomMover) StatelessMove(snapshot Snapshot) (entity.Move, error) {
	if snapshot.State == nil || !snapshot.State.HasLegalMoves() {
		return entity.Move{}, ErrNoAvailableMoves
	}

	moves := snapshot.State.LegalMoves

	return moves[that.intn(len(moves))], nil
}

// FirstMover always plays the first legal move.
type FirstMover struct{}

func (FirstMover) StatelessMove(snapshot Snapshot) (entity.Move, error) {
	if snapshot.State == nil || !snapshot.State.HasLegalMoves() {
		return entity.Move{}, ErrNoAvailableMoves
	}

	return snapshot.State.LegalMoves[0], nil
}
