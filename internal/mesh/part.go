package mesh

// Rank is the primary entity rank of a part.
type Rank int

const (
	NodeRank Rank = iota
	EdgeRank
	FaceRank
	ElementRank
)

func (r Rank) String() string {
	switch r {
	case NodeRank:
		return "node"
	case EdgeRank:
		return "edge"
	case FaceRank:
		return "face"
	case ElementRank:
		return "element"
	default:
		return "invalid"
	}
}

// Topology names the cell shape of the entities in a part.
type Topology string

const (
	TopoNode  Topology = "node"
	TopoLine2 Topology = "line_2"
	TopoTri3  Topology = "tri_3"
	TopoQuad4 Topology = "quad_4"
	TopoTet4  Topology = "tet_4"
	TopoHex8  Topology = "hex_8"
)

// Part is a named subset of mesh entities.
type Part struct {
	name    string
	rank    Rank
	topo    Topology
	nodes   []int
	subsets []*Part
	parent  *Part
}

func (p *Part) Name() string       { return p.name }
func (p *Part) Rank() Rank         { return p.rank }
func (p *Part) Topology() Topology { return p.topo }
func (p *Part) Parent() *Part      { return p.parent }

// Nodes returns the node ids touched by the part. The slice is shared.
func (p *Part) Nodes() []int { return p.nodes }

// Subsets returns the declared subsets of p.
func (p *Part) Subsets() []*Part { return p.subsets }

// Expand returns the subsets of p, or p itself when it has none. Surface
// registration walks the expanded list.
func (p *Part) Expand() []*Part {
	if len(p.subsets) == 0 {
		return []*Part{p}
	}
	return p.subsets
}

func (p *Part) addNodes(nodes []int) {
	seen := make(map[int]struct{}, len(p.nodes))
	for _, n := range p.nodes {
		seen[n] = struct{}{}
	}
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		p.nodes = append(p.nodes, n)
	}
}
