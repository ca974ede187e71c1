package field

import "github.com/saitoasukakawaii/nalu-wind/internal/mesh"

// Definition describes a registrable field. Components == 0 means one
// component per spatial dimension.
type Definition struct {
	Rank       mesh.Rank
	Components int
	MultiState bool
}

var definitions = map[string]Definition{
	"velocity":                  {Rank: mesh.NodeRank, MultiState: true},
	"pressure":                  {Rank: mesh.NodeRank, Components: 1},
	"density":                   {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"viscosity":                 {Rank: mesh.NodeRank, Components: 1},
	"enthalpy":                  {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"temperature":               {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"specific_heat":             {Rank: mesh.NodeRank, Components: 1},
	"thermal_conductivity":      {Rank: mesh.NodeRank, Components: 1},
	"turbulent_ke":              {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"specific_dissipation_rate": {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"total_dissipation_rate":    {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"turbulent_viscosity":       {Rank: mesh.NodeRank, Components: 1},
	"volume_of_fluid":           {Rank: mesh.NodeRank, Components: 1, MultiState: true},
	"wall_distance_phi":         {Rank: mesh.NodeRank, Components: 1},
	"minimum_distance_to_wall":  {Rank: mesh.NodeRank, Components: 1},
	"dual_nodal_volume":         {Rank: mesh.NodeRank, Components: 1},
	"edge_area_vector":          {Rank: mesh.EdgeRank},
	"element_volume":            {Rank: mesh.ElementRank, Components: 1},
}

// Lookup returns the registry definition for name.
func Lookup(name string) (Definition, bool) {
	d, ok := definitions[name]
	return d, ok
}
