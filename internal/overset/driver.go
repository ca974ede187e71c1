// Package overset holds the field-exchange obligations between overlapping
// mesh regions and triggers them once per pre-iteration cycle.
package overset

import (
	"errors"
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

var (
	ErrFieldNotResident = errors.New("overset: field not resident on the mesh")
	ErrShape            = errors.New("overset: update shape does not match field")
	ErrNotRegistered    = errors.New("overset: field has no registered update")
)

// FieldUpdate is one registered exchange: a field and its rows x cols shape.
type FieldUpdate struct {
	Field *field.Field
	Rows  int
	Cols  int
}

// Exchanger moves data for one update across the overset interface.
type Exchanger interface {
	Exchange(u FieldUpdate) error
}

// Driver keeps the ordered update registry.
type Driver struct {
	fields     *field.Manager
	ex         Exchanger
	updates    []FieldUpdate
	executions int
}

func NewDriver(fields *field.Manager, ex Exchanger) *Driver {
	return &Driver{fields: fields, ex: ex}
}

// Register adds f to the registry. The field must be resident in the field
// manager and rows*cols must match its component count. Registering the
// same field again with the same shape is a no-op.
func (d *Driver) Register(f *field.Field, rows, cols int) error {
	if f == nil || !d.fields.Resident(f) {
		name := "<nil>"
		if f != nil {
			name = f.Name()
		}
		return fmt.Errorf("%w: %s", ErrFieldNotResident, name)
	}
	if rows < 1 || cols < 1 || rows*cols != f.Components() {
		return fmt.Errorf("%w: %s has %d components, registered as %dx%d", ErrShape, f.Name(), f.Components(), rows, cols)
	}
	for _, u := range d.updates {
		if u.Field != f {
			continue
		}
		if u.Rows != rows || u.Cols != cols {
			return fmt.Errorf("%w: %s already registered as %dx%d", ErrShape, f.Name(), u.Rows, u.Cols)
		}
		return nil
	}
	d.updates = append(d.updates, FieldUpdate{Field: f, Rows: rows, Cols: cols})
	return nil
}

// Execute runs every registered update in registration order.
func (d *Driver) Execute() error {
	d.executions++
	for _, u := range d.updates {
		if err := d.ex.Exchange(u); err != nil {
			return fmt.Errorf("overset update %s: %w", u.Field.Name(), err)
		}
	}
	return nil
}

// ExecuteField runs the update registered for f only.
func (d *Driver) ExecuteField(f *field.Field) error {
	for _, u := range d.updates {
		if u.Field == f {
			return d.ex.Exchange(u)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotRegistered, f.Name())
}

func (d *Driver) Updates() []FieldUpdate { return d.updates }

// Executions counts full Execute passes.
func (d *Driver) Executions() int { return d.executions }

// FringeExchanger interpolates receptor nodes from their donors using the
// mesh's overset connectivity.
type FringeExchanger struct {
	meta *mesh.MetaData
}

func NewFringeExchanger(meta *mesh.MetaData) *FringeExchanger {
	return &FringeExchanger{meta: meta}
}

func (x *FringeExchanger) Exchange(u FieldUpdate) error {
	f := u.Field
	if f.Rank() != mesh.NodeRank {
		return fmt.Errorf("fringe exchange needs a nodal field, %s is %s rank", f.Name(), f.Rank())
	}
	vals := f.Values(field.StateNP1)
	nc := f.Components()
	for _, c := range x.meta.Fringe() {
		for k := 0; k < nc; k++ {
			sum := 0.0
			for i, d := range c.Donors {
				sum += c.Weights[i] * vals[d*nc+k]
			}
			vals[c.Receptor*nc+k] = sum
		}
	}
	return nil
}
