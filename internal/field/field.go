// Package field stores computational fields on mesh parts.
//
// Field names must be known to the definition registry before they can be
// registered; the registry fixes each field's entity rank, component count
// and whether it carries time history. A [Manager] created with N states
// gives every multi-state field N copies (NP1, N, NM1, ...).
package field

import (
	"errors"
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

var (
	ErrUndefinedField = errors.New("field: name not in field registry")
	ErrNotRegistered  = errors.New("field: not registered")
	ErrStateConflict  = errors.New("field: conflicting re-registration")
	ErrBadState       = errors.New("field: state not available")
)

// State selects one time level of a multi-state field.
type State int

const (
	StateNone State = iota
	StateN
	StateNM1
)

// StateNP1 is the current (unknown) level.
const StateNP1 = StateNone

// Field is a named array of values attached to mesh entities of one rank.
type Field struct {
	name       string
	rank       mesh.Rank
	components int
	size       int
	states     [][]float64
	parts      []*mesh.Part
}

func (f *Field) Name() string        { return f.name }
func (f *Field) Rank() mesh.Rank     { return f.rank }
func (f *Field) Components() int     { return f.components }
func (f *Field) NumStates() int      { return len(f.states) }
func (f *Field) Size() int           { return f.size }
func (f *Field) Parts() []*mesh.Part { return f.parts }

// Values returns the backing slice of the given state. Entity e, component
// c lives at index e*Components()+c.
func (f *Field) Values(s State) []float64 {
	if int(s) < 0 || int(s) >= len(f.states) {
		panic(fmt.Sprintf("field %q: %v", f.name, ErrBadState))
	}
	return f.states[s]
}

// State returns the values at s, or an error if the field has no such level.
func (f *Field) State(s State) ([]float64, error) {
	if int(s) < 0 || int(s) >= len(f.states) {
		return nil, fmt.Errorf("%w: %q has %d states, asked for %d", ErrBadState, f.name, len(f.states), s)
	}
	return f.states[s], nil
}

// OnPart reports whether the field was registered on p or one of its parents.
func (f *Field) OnPart(p *mesh.Part) bool {
	for q := p; q != nil; q = q.Parent() {
		for _, r := range f.parts {
			if r == q {
				return true
			}
		}
	}
	return false
}

// RotateStates shifts time levels back by one: NM1 <- N <- NP1.
func (f *Field) RotateStates() {
	for k := len(f.states) - 1; k > 0; k-- {
		copy(f.states[k], f.states[k-1])
	}
}

// Fill sets every value of state s to v.
func (f *Field) Fill(s State, v float64) {
	vals := f.Values(s)
	for i := range vals {
		vals[i] = v
	}
}

func (f *Field) addParts(parts []*mesh.Part) {
	for _, p := range parts {
		dup := false
		for _, q := range f.parts {
			if q == p {
				dup = true
				break
			}
		}
		if !dup {
			f.parts = append(f.parts, p)
		}
	}
}
