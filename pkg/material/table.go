package material

// Handle is a non-owning reference to a Material stored in a Table
type Handle int

// Table owns the materials of a scene. Spheres refer to entries by Handle.
type Table struct {
	materials []Material
}

// NewTable creates an empty material table
func NewTable() *Table {
	return &Table{}
}

// Add stores a material and returns its handle
func (t *Table) Add(m Material) Handle {
	t.materials = append(t.materials, m)
	return Handle(len(t.materials) - 1)
}

// Get returns the material for a handle. The pointer must not be used to modify the material.
func (t *Table) Get(h Handle) *Material {
	return &t.materials[h]
}

// Valid reports whether h refers to a material in the table
func (t *Table) Valid(h Handle) bool {
	return h >= 0 && int(h) < len(t.materials)
}

// Len returns the number of materials in the table
func (t *Table) Len() int {
	return len(t.materials)
}
