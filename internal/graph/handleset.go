package graph

import "slices"

// handleSet is a sorted set of handles. Sorted storage keeps iteration order
// deterministic, which seeded chains rely on.
type handleSet []Handle

func (s handleSet) contains(h Handle) bool {
	_, found := slices.BinarySearch(s, h)
	return found
}

func (s *handleSet) add(h Handle) {
	i, found := slices.BinarySearch(*s, h)
	if found {
		return
	}
	*s = slices.Insert(*s, i, h)
}

func (s *handleSet) remove(h Handle) bool {
	i, found := slices.BinarySearch(*s, h)
	if !found {
		return false
	}
	*s = slices.Delete(*s, i, i+1)
	return true
}
