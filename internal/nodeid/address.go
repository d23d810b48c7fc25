// internal/nodeid/address.go
package nodeid

import (
	"slices"
	"strconv"
	"strings"
)

// Variable returns the name of the node without any element index.
func (a *Address) Variable() string {
	if a == nil {
		return ""
	}
	return strings.Join(a.Segments, ".")
}

// String serializes the Address into its canonical representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	if !a.HasIndex() {
		return a.Variable()
	}
	return a.Variable() + "[" + strconv.Itoa(a.Index) + "]"
}

// Element returns a copy of the address pointing at element i.
func (a *Address) Element(i int) *Address {
	return &Address{Segments: slices.Clone(a.Segments), Index: i}
}

// Equal checks for deep equality between two Address pointers.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Index == other.Index && slices.Equal(a.Segments, other.Segments)
}
