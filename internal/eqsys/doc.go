// Package eqsys coordinates the equation systems of one realm.
//
// An [EquationSystems] owns an ordered list of [System] values built from
// physics blocks through a [Registry]. Each nonlinear iteration it runs the
// overset exchange (when the realm has overset topology) and the pre-iteration
// side tasks, then drives every top-level system through PreIterWork,
// SolveAndUpdate and PostIterWork in declaration order, runs the legacy
// PostIterWorkDep pass and the post-iteration side tasks, and finally ANDs the
// convergence of every member.
//
// Optional behaviour is expressed as small capability interfaces
// (WallBCRegistrar, StatePredictor, ...). Registration and per-step hooks are
// dispatched only to members that implement them.
package eqsys
