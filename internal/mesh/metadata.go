package mesh

import (
	"fmt"
	"sort"
)

// Connectivity ties one overset receptor node to its donor nodes.
type Connectivity struct {
	Receptor int
	Donors   []int
	Weights  []float64
}

// PeriodicPair records a master/slave surface pairing.
type PeriodicPair struct {
	Master          *Part
	Slave           *Part
	SearchTolerance float64
	SearchMethod    string
}

// NonConformalPair records a current/opposing surface pairing.
type NonConformalPair struct {
	Current  []*Part
	Opposing []*Part
}

// MetaData is the part and connectivity database of one mesh.
type MetaData struct {
	dim      int
	counts   map[Rank]int
	parts    map[string]*Part
	order    []*Part
	edges    [][2]int
	adjacent [][]int

	fringe       []Connectivity
	periodic     []PeriodicPair
	nonConformal []NonConformalPair
}

func NewMetaData(dim, numNodes int) *MetaData {
	return &MetaData{
		dim:    dim,
		counts: map[Rank]int{NodeRank: numNodes},
		parts:  make(map[string]*Part),
	}
}

func (m *MetaData) SpatialDimension() int { return m.dim }
func (m *MetaData) NumNodes() int         { return m.counts[NodeRank] }

// EntityCount returns the number of entities of rank r.
func (m *MetaData) EntityCount(r Rank) int { return m.counts[r] }

func (m *MetaData) SetEntityCount(r Rank, n int) { m.counts[r] = n }

// SideRank is the rank of boundary faces: faces in 3D, edges in 2D.
func (m *MetaData) SideRank() Rank {
	if m.dim == 3 {
		return FaceRank
	}
	return EdgeRank
}

// DeclarePart adds a top-level part.
func (m *MetaData) DeclarePart(name string, rank Rank, topo Topology, nodes []int) (*Part, error) {
	return m.declare(nil, name, rank, topo, nodes)
}

// DeclareSubset adds a part nested under parent. The subset's nodes are
// also attached to the parent.
func (m *MetaData) DeclareSubset(parent *Part, name string, rank Rank, topo Topology, nodes []int) (*Part, error) {
	return m.declare(parent, name, rank, topo, nodes)
}

func (m *MetaData) declare(parent *Part, name string, rank Rank, topo Topology, nodes []int) (*Part, error) {
	if _, ok := m.parts[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicatePart, name)
	}
	for _, n := range nodes {
		if n < 0 || n >= m.NumNodes() {
			return nil, fmt.Errorf("%w: part %q node %d", ErrNodeOutOfRange, name, n)
		}
	}
	p := &Part{name: name, rank: rank, topo: topo, parent: parent}
	p.addNodes(nodes)
	if parent != nil {
		parent.subsets = append(parent.subsets, p)
		parent.addNodes(nodes)
	}
	m.parts[name] = p
	m.order = append(m.order, p)
	return p, nil
}

// GetPart returns the named part.
func (m *MetaData) GetPart(name string) (*Part, bool) {
	p, ok := m.parts[name]
	return p, ok
}

// Parts returns all parts in declaration order.
func (m *MetaData) Parts() []*Part {
	return m.order
}

// Resolve looks up name and checks its rank.
func (m *MetaData) Resolve(name string, rank Rank) (*Part, error) {
	p, ok := m.parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPartNotFound, name)
	}
	if p.rank != rank {
		return nil, &RankError{Part: name, Want: rank, Got: p.rank}
	}
	return p, nil
}

// AddEdge connects nodes a and b.
func (m *MetaData) AddEdge(a, b int) error {
	if a < 0 || a >= m.NumNodes() || b < 0 || b >= m.NumNodes() {
		return fmt.Errorf("%w: edge (%d,%d)", ErrNodeOutOfRange, a, b)
	}
	m.edges = append(m.edges, [2]int{a, b})
	m.counts[EdgeRank] = len(m.edges)
	m.adjacent = nil
	return nil
}

func (m *MetaData) Edges() [][2]int { return m.edges }

// Neighbors returns the sorted node adjacency built from the edge list.
func (m *MetaData) Neighbors(node int) []int {
	if m.adjacent == nil {
		m.adjacent = make([][]int, m.NumNodes())
		for _, e := range m.edges {
			m.adjacent[e[0]] = append(m.adjacent[e[0]], e[1])
			m.adjacent[e[1]] = append(m.adjacent[e[1]], e[0])
		}
		for _, a := range m.adjacent {
			sort.Ints(a)
		}
	}
	return m.adjacent[node]
}

// AddFringe records an overset receptor and its donors.
func (m *MetaData) AddFringe(c Connectivity) error {
	if len(c.Donors) != len(c.Weights) {
		return fmt.Errorf("mesh: receptor %d has %d donors and %d weights", c.Receptor, len(c.Donors), len(c.Weights))
	}
	ids := append([]int{c.Receptor}, c.Donors...)
	for _, n := range ids {
		if n < 0 || n >= m.NumNodes() {
			return fmt.Errorf("%w: fringe node %d", ErrNodeOutOfRange, n)
		}
	}
	m.fringe = append(m.fringe, c)
	return nil
}

func (m *MetaData) Fringe() []Connectivity { return m.fringe }

// HasOverset reports whether any overset connectivity was declared.
func (m *MetaData) HasOverset() bool { return len(m.fringe) > 0 }

// RegisterPeriodic records a periodic pairing between two surfaces.
func (m *MetaData) RegisterPeriodic(master, slave *Part, tol float64, method string) {
	m.periodic = append(m.periodic, PeriodicPair{
		Master:          master,
		Slave:           slave,
		SearchTolerance: tol,
		SearchMethod:    method,
	})
}

func (m *MetaData) Periodic() []PeriodicPair { return m.periodic }

// SetupNonConformal records a non-conformal interface.
func (m *MetaData) SetupNonConformal(current, opposing []*Part) {
	m.nonConformal = append(m.nonConformal, NonConformalPair{Current: current, Opposing: opposing})
}

func (m *MetaData) NonConformal() []NonConformalPair { return m.nonConformal }
