package eqsys

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultMaxIterations        = 1
	DefaultConvergenceTolerance = 1.0e-5
)

// Options are the keys every physics block understands. Concrete systems
// embed Options with `mapstructure:",squash"` and add their own keys.
type Options struct {
	Name                  string  `mapstructure:"name"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	ConvergenceTolerance  float64 `mapstructure:"convergence_tolerance"`
	DecoupledOversetSolve *bool   `mapstructure:"decoupled_overset_solve"`
	NumOversetCorrectors  *int    `mapstructure:"num_overset_correctors"`
}

// DecodeOptions decodes a physics block into out. Unknown keys are errors.
func DecodeOptions(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
