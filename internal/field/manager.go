package field

import (
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// Option overrides registry defaults at registration.
type Option func(*registration)

type registration struct {
	states     int
	components int
	init       *float64
}

// WithStates overrides the number of states.
func WithStates(n int) Option {
	return func(r *registration) { r.states = n }
}

// WithComponents overrides the number of components.
func WithComponents(n int) Option {
	return func(r *registration) { r.components = n }
}

// WithInitialValue fills every state with v on first registration.
func WithInitialValue(v float64) Option {
	return func(r *registration) { r.init = &v }
}

// Manager registers fields against one mesh.
type Manager struct {
	meta      *mesh.MetaData
	numStates int
	fields    map[string]*Field
	order     []*Field
}

func NewManager(meta *mesh.MetaData, numStates int) *Manager {
	if numStates < 1 {
		numStates = 1
	}
	return &Manager{
		meta:      meta,
		numStates: numStates,
		fields:    make(map[string]*Field),
	}
}

func (m *Manager) MetaData() *mesh.MetaData { return m.meta }
func (m *Manager) NumStates() int           { return m.numStates }

// Exists reports whether name has been registered.
func (m *Manager) Exists(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// Resident reports whether f is the field registered under its name.
func (m *Manager) Resident(f *Field) bool {
	if f == nil {
		return false
	}
	return m.fields[f.name] == f
}

// Register declares name on parts. Registering the same field again adds
// parts; changing its states or components is an error.
func (m *Manager) Register(name string, parts []*mesh.Part, opts ...Option) (*Field, error) {
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndefinedField, name)
	}

	reg := registration{}
	for _, o := range opts {
		o(&reg)
	}
	states := 1
	if def.MultiState {
		states = m.numStates
	}
	if reg.states > 0 {
		states = reg.states
	}
	comps := def.Components
	if comps == 0 {
		comps = m.meta.SpatialDimension()
	}
	if reg.components > 0 {
		comps = reg.components
	}

	if f, ok := m.fields[name]; ok {
		if (reg.states > 0 && reg.states != len(f.states)) || (reg.components > 0 && reg.components != f.components) {
			return nil, fmt.Errorf("%w: %q registered with %d states x %d components", ErrStateConflict, name, len(f.states), f.components)
		}
		f.addParts(parts)
		return f, nil
	}

	size := m.meta.EntityCount(def.Rank)
	f := &Field{
		name:       name,
		rank:       def.Rank,
		components: comps,
		size:       size,
		states:     make([][]float64, states),
	}
	for k := range f.states {
		f.states[k] = make([]float64, size*comps)
	}
	if reg.init != nil {
		for k := range f.states {
			f.Fill(State(k), *reg.init)
		}
	}
	f.addParts(parts)
	m.fields[name] = f
	m.order = append(m.order, f)
	return f, nil
}

// Get returns the registered field.
func (m *Manager) Get(name string) (*Field, error) {
	f, ok := m.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return f, nil
}

// Values returns the values of name at state s.
func (m *Manager) Values(name string, s State) ([]float64, error) {
	f, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return f.State(s)
}

// Fields returns every registered field in registration order.
func (m *Manager) Fields() []*Field { return m.order }
