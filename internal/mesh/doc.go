// Package mesh provides the part database consumed by the equation-system
// scheduler.
//
// A [MetaData] owns named [Part] values. Each part carries a primary entity
// [Rank], a [Topology] and an optional list of subsets: a logical boundary
// surface such as "inlet" may alias several physical sub-surfaces with
// different topologies.
//
// Lookups distinguish a name that does not exist ([ErrPartNotFound]) from a
// part that exists with the wrong rank ([RankError], matching
// [ErrWrongRank]).
//
// The package also records the mesh-level pairing requested by periodic,
// non-conformal and overset boundary conditions. Geometric search is not
// performed here; the records are consumed by the field exchange layer.
//
// # Example
//
//	meta, _ := mesh.Grid(mesh.GridOptions{Nx: 8, Ny: 4})
//	inlet, err := meta.Resolve("left", meta.SideRank())
package mesh
