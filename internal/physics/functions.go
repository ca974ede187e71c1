package physics

import (
	"errors"
	"fmt"
	"sort"
)

var errParams = errors.New("wrong number of user function parameters")

// userFunction evaluates an initial value for component c of the i-th of n
// nodes of a part.
type userFunction func(params []float64, i, n, c int) (float64, error)

var userFunctions = map[string]userFunction{
	// uniform: one value, or one per component
	"uniform": func(params []float64, _, _, c int) (float64, error) {
		switch {
		case len(params) == 0:
			return 0, fmt.Errorf("%w: uniform needs at least 1", errParams)
		case c < len(params):
			return params[c], nil
		default:
			return params[0], nil
		}
	},
	// ramp: linear from params[0] at the first node to params[1] at the last
	"ramp": func(params []float64, i, n, _ int) (float64, error) {
		if len(params) != 2 {
			return 0, fmt.Errorf("%w: ramp needs 2, got %d", errParams, len(params))
		}
		if n < 2 {
			return params[0], nil
		}
		return params[0] + (params[1]-params[0])*float64(i)/float64(n-1), nil
	},
}

// UserFunctions lists the initial-condition functions by name.
func UserFunctions() []string {
	names := make([]string, 0, len(userFunctions))
	for name := range userFunctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
