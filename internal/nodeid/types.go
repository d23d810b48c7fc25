// internal/nodeid/types.go
package nodeid

// NoIndex marks an address that refers to the whole node value.
const NoIndex = -1

// Address is the structured representation of a node name.
type Address struct {
	// Segments holds the dot-separated parts of the variable name.
	Segments []string
	// Index addresses one element of a vector value. NoIndex means the whole value.
	Index int
}

// New creates an address for a whole variable.
func New(segments ...string) *Address {
	return &Address{Segments: segments, Index: NoIndex}
}

// NewElement creates an address for a single element of a variable.
func NewElement(index int, segments ...string) *Address {
	return &Address{Segments: segments, Index: index}
}

// HasIndex returns true if the address points at a single element.
func (a *Address) HasIndex() bool {
	return a.Index != NoIndex
}
