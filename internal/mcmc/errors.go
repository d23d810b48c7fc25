package mcmc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStartingState is returned when no initial state with a finite
	// log-posterior was found within the retry policy.
	ErrNoStartingState = errors.New("no computable starting state")
	// ErrNotInitialized is returned by Burnin and Run before Initialize.
	ErrNotInitialized = errors.New("chain is not initialized")
	// ErrInvalidConfig is returned for out-of-range sampler settings.
	ErrInvalidConfig = errors.New("invalid sampler configuration")
)

// InitError reports a failed initial-state search.
type InitError struct {
	Chain    int
	Node     string // node with a non-finite log-probability, if known
	Attempts int
	Err      error // last numerical or redraw failure, if any
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("chain %d: %s after %d attempts", e.Chain, ErrNoStartingState, e.Attempts)
	if e.Node != "" {
		msg += fmt.Sprintf(" (node %q has a non-finite log-probability)", e.Node)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match ErrNoStartingState.
func (e *InitError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNoStartingState, e.Err}
	}
	return []error{ErrNoStartingState}
}
