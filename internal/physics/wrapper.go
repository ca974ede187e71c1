package physics

import (
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
)

// wrapper owns no linear system; it solves its children in order.
type wrapper struct {
	eqsys.Base
	children []eqsys.System
}

func newWrapper(parent *eqsys.EquationSystems, s eqsys.Settings, eqnType string, o eqsys.Options) wrapper {
	return wrapper{Base: eqsys.NewBase(parent, s, eqnType, eqnType, o)}
}

func (w *wrapper) Children() []eqsys.System { return w.children }

func (w *wrapper) SolveAndUpdate() error {
	for _, c := range w.children {
		if err := c.PreIterWork(); err != nil {
			return fmt.Errorf("%s: %s: %w", w.Name(), c.Name(), err)
		}
		if err := c.SolveAndUpdate(); err != nil {
			return fmt.Errorf("%s: %w", w.Name(), err)
		}
		if err := c.PostIterWork(); err != nil {
			return fmt.Errorf("%s: %s: %w", w.Name(), c.Name(), err)
		}
	}
	return nil
}

// childOptions hands the wrapper's numeric and overset controls to a child.
func childOptions(o eqsys.Options, name string) eqsys.Options {
	o.Name = name
	return o
}
