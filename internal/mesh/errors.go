package mesh

import (
	"errors"
	"fmt"
)

var (
	// ErrPartNotFound indicates a lookup of a part name that was never declared.
	ErrPartNotFound = errors.New("mesh: no part found")

	// ErrWrongRank indicates a part exists but its primary entity rank is not
	// the one the caller requires.
	ErrWrongRank = errors.New("mesh: part has wrong rank")

	// ErrDuplicatePart indicates a second declaration of the same part name.
	ErrDuplicatePart = errors.New("mesh: part already declared")

	// ErrNodeOutOfRange indicates a node id outside [0, NumNodes).
	ErrNodeOutOfRange = errors.New("mesh: node id out of range")
)

// RankError reports a part that was found with an unexpected rank.
type RankError struct {
	Part string
	Want Rank
	Got  Rank
}

func (e *RankError) Error() string {
	return fmt.Sprintf("mesh: part %q has rank %s, expected %s", e.Part, e.Got, e.Want)
}

func (e *RankError) Unwrap() error {
	return ErrWrongRank
}
