// Package linsys provides the linear-system handle owned by an equation
// system: a dense matrix and right-hand side that are assembled each
// nonlinear iteration, solved for a solution increment, and queried for
// residual norms.
package linsys

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownMethod = errors.New("linsys: unknown solver method")
	ErrSingular      = errors.New("linsys: singular matrix")
	ErrNotConverged  = errors.New("linsys: iterative solve did not converge")
	ErrSize          = errors.New("linsys: size mismatch")
)

const (
	MethodDirect = "direct"
	MethodJacobi = "jacobi"
)

// Spec is a named linear-solver configuration block.
type Spec struct {
	Name          string  `yaml:"name"`
	Method        string  `yaml:"method"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
}

// DefaultSpec returns a direct solver spec.
func DefaultSpec(name string) Spec {
	return Spec{Name: name, Method: MethodDirect, Tolerance: 1e-10, MaxIterations: 200}
}

// LinearSystem is the assemble/solve/norm contract consumed by equation
// systems.
type LinearSystem interface {
	Name() string
	Size() int
	Zero()
	SumInto(row, col int, v float64)
	SumRHS(row int, v float64)
	SetDirichlet(row int, value float64)
	Solve(delta []float64) (iterations int, err error)

	// Norm is the residual (rhs) norm of the last solve.
	Norm() float64
	// ScaledNorm is Norm divided by the first residual since ResetNorms,
	// or Norm itself when that residual was zero.
	ScaledNorm() float64
	// Increment is the norm of the last solution increment.
	Increment() float64
	ResetNorms()
}

// New builds the linear system described by spec for n unknowns.
func New(spec Spec, n int) (LinearSystem, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d rows", ErrSize, n)
	}
	base := dense{
		name: spec.Name,
		a:    mat.NewDense(n, n, nil),
		b:    mat.NewVecDense(n, nil),
	}
	switch spec.Method {
	case MethodDirect, "":
		return &Direct{dense: base}, nil
	case MethodJacobi:
		tol := spec.Tolerance
		if tol <= 0 {
			tol = 1e-10
		}
		maxIt := spec.MaxIterations
		if maxIt <= 0 {
			maxIt = 200
		}
		return &Jacobi{dense: base, tol: tol, maxIt: maxIt}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, spec.Method)
	}
}

type dense struct {
	name string
	a    *mat.Dense
	b    *mat.VecDense

	norm      float64
	firstNorm float64
	haveFirst bool
	increment float64
}

func (d *dense) Name() string { return d.name }
func (d *dense) Size() int    { return d.b.Len() }

func (d *dense) Zero() {
	d.a.Zero()
	d.b.Zero()
}

func (d *dense) SumInto(row, col int, v float64) {
	d.a.Set(row, col, d.a.At(row, col)+v)
}

func (d *dense) SumRHS(row int, v float64) {
	d.b.SetVec(row, d.b.AtVec(row)+v)
}

// SetDirichlet replaces row with the identity and the rhs with value.
func (d *dense) SetDirichlet(row int, value float64) {
	n := d.Size()
	for j := 0; j < n; j++ {
		d.a.Set(row, j, 0)
	}
	d.a.Set(row, row, 1)
	d.b.SetVec(row, value)
}

func (d *dense) Norm() float64      { return d.norm }
func (d *dense) Increment() float64 { return d.increment }

// ScaledNorm is the absolute norm while the reference residual is zero.
func (d *dense) ScaledNorm() float64 {
	if d.firstNorm == 0 {
		return d.norm
	}
	return d.norm / d.firstNorm
}

func (d *dense) ResetNorms() {
	d.haveFirst = false
	d.firstNorm = 0
}

func (d *dense) recordResidual() {
	d.norm = floats.Norm(d.b.RawVector().Data, 2)
	if !d.haveFirst {
		d.firstNorm = d.norm
		d.haveFirst = true
	}
}

func (d *dense) checkSize(delta []float64) error {
	if len(delta) != d.Size() {
		return fmt.Errorf("%w: %s has %d rows, delta has %d", ErrSize, d.name, d.Size(), len(delta))
	}
	return nil
}

// Direct solves by LU factorisation.
type Direct struct {
	dense
}

func (s *Direct) Solve(delta []float64) (int, error) {
	if err := s.checkSize(delta); err != nil {
		return 0, err
	}
	s.recordResidual()

	var lu mat.LU
	lu.Factorize(s.a)
	x := mat.NewVecDense(len(delta), delta)
	if err := lu.SolveVecTo(x, false, s.b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return 0, fmt.Errorf("%w: %s: %v", ErrSingular, s.name, err)
		}
	}
	s.increment = floats.Norm(delta, 2)
	return 1, nil
}

// Jacobi solves by point-Jacobi iteration.
type Jacobi struct {
	dense
	tol   float64
	maxIt int
}

func (s *Jacobi) Solve(delta []float64) (int, error) {
	if err := s.checkSize(delta); err != nil {
		return 0, err
	}
	s.recordResidual()

	n := s.Size()
	for i := 0; i < n; i++ {
		if s.a.At(i, i) == 0 {
			return 0, fmt.Errorf("%w: %s: zero diagonal in row %d", ErrSingular, s.name, i)
		}
	}

	for i := range delta {
		delta[i] = 0
	}
	next := make([]float64, n)
	r := make([]float64, n)
	target := s.tol * math.Max(s.norm, math.SmallestNonzeroFloat64)

	for it := 1; it <= s.maxIt; it++ {
		for i := 0; i < n; i++ {
			sum := s.b.AtVec(i)
			for j := 0; j < n; j++ {
				if j != i {
					sum -= s.a.At(i, j) * delta[j]
				}
			}
			next[i] = sum / s.a.At(i, i)
		}
		copy(delta, next)

		for i := 0; i < n; i++ {
			r[i] = s.b.AtVec(i) - floats.Dot(s.a.RawRowView(i), delta)
		}
		if floats.Norm(r, 2) <= target {
			s.increment = floats.Norm(delta, 2)
			return it, nil
		}
	}
	s.increment = floats.Norm(delta, 2)
	return s.maxIt, fmt.Errorf("%w: %s after %d iterations", ErrNotConverged, s.name, s.maxIt)
}
