package mcmc

import "github.com/specialistvlad/burstmc/internal/graph"

// Monitor records the state of a chain. Monitors decide themselves how often
// they actually write: Monitor is called at generation 0 of a fresh run and
// after every sampling generation.
type Monitor interface {
	// SetModel binds the monitor to the nodes of m by name.
	SetModel(m *graph.Model) error
	OpenStream() error
	PrintHeader() error
	Monitor(generation int) error
	CloseStream() error
	// Clone returns an unbound copy for another chain. Clones may share an
	// output stream with the original.
	Clone() Monitor
}
