package mesh

import "fmt"

// GridOptions controls the structured generator.
type GridOptions struct {
	Nx      int  `yaml:"nx"`
	Ny      int  `yaml:"ny"`
	Overset bool `yaml:"overset"`
}

// Grid builds a 2D structured quad mesh of Nx*Ny elements.
//
// It declares the element block "block_1", the boundary surfaces "left",
// "right", "bottom" and "top" (each with one line_2 subset), and, with
// Overset set, a fringe column in the middle of the block whose receptors
// interpolate from their left and right neighbours.
func Grid(opts GridOptions) (*MetaData, error) {
	if opts.Nx < 2 || opts.Ny < 1 {
		return nil, fmt.Errorf("mesh: grid needs nx >= 2 and ny >= 1, got %dx%d", opts.Nx, opts.Ny)
	}
	nx, ny := opts.Nx, opts.Ny
	id := func(i, j int) int { return j*(nx+1) + i }

	m := NewMetaData(2, (nx+1)*(ny+1))
	m.SetEntityCount(ElementRank, nx*ny)

	all := make([]int, 0, m.NumNodes())
	for n := 0; n < m.NumNodes(); n++ {
		all = append(all, n)
	}
	if _, err := m.DeclarePart("block_1", ElementRank, TopoQuad4, all); err != nil {
		return nil, err
	}

	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			if i < nx {
				if err := m.AddEdge(id(i, j), id(i+1, j)); err != nil {
					return nil, err
				}
			}
			if j < ny {
				if err := m.AddEdge(id(i, j), id(i, j+1)); err != nil {
					return nil, err
				}
			}
		}
	}

	var left, right, bottom, top []int
	for j := 0; j <= ny; j++ {
		left = append(left, id(0, j))
		right = append(right, id(nx, j))
	}
	for i := 0; i <= nx; i++ {
		bottom = append(bottom, id(i, 0))
		top = append(top, id(i, ny))
	}
	sides := []struct {
		name  string
		nodes []int
	}{
		{"left", left},
		{"right", right},
		{"bottom", bottom},
		{"top", top},
	}
	for _, s := range sides {
		parent, err := m.DeclarePart(s.name, EdgeRank, TopoLine2, nil)
		if err != nil {
			return nil, err
		}
		if _, err := m.DeclareSubset(parent, s.name+"_"+string(TopoLine2), EdgeRank, TopoLine2, s.nodes); err != nil {
			return nil, err
		}
	}

	if opts.Overset {
		c := nx / 2
		var fringe []int
		for j := 1; j < ny; j++ {
			fringe = append(fringe, id(c, j))
			err := m.AddFringe(Connectivity{
				Receptor: id(c, j),
				Donors:   []int{id(c-1, j), id(c+1, j)},
				Weights:  []float64{0.5, 0.5},
			})
			if err != nil {
				return nil, err
			}
		}
		if _, err := m.DeclarePart("overset_fringe", EdgeRank, TopoLine2, fringe); err != nil {
			return nil, err
		}
	}

	return m, nil
}
