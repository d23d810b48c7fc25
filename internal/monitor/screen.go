package monitor

import (
	"log/slog"

	"github.com/specialistvlad/burstmc/internal/mcmc"
)

// Screen logs one line per sampled generation.
type Screen struct {
	base
	logger *slog.Logger
}

var _ mcmc.Monitor = (*Screen)(nil)

// NewScreen returns a screen monitor writing to logger.
func NewScreen(logger *slog.Logger, every int, nodes []string) *Screen {
	return &Screen{base: newBase(every, nodes), logger: logger}
}

func (s *Screen) OpenStream() error  { return nil }
func (s *Screen) CloseStream() error { return nil }

func (s *Screen) PrintHeader() error {
	cols, err := s.columns()
	if err != nil {
		return err
	}
	s.logger.Info("Monitoring chain.", "every", s.every, "columns", cols)
	return nil
}

func (s *Screen) Monitor(generation int) error {
	if !s.due(generation) {
		return nil
	}
	cols, err := s.columns()
	if err != nil {
		return err
	}
	lnPosterior, values, err := s.row()
	if err != nil {
		return err
	}
	args := make([]any, 0, 4+2*len(values))
	args = append(args, "generation", generation, "ln_posterior", lnPosterior)
	for i, v := range values {
		args = append(args, cols[i], v)
	}
	s.logger.Info("Sample.", args...)
	return nil
}

// Clone returns an unbound copy logging to the same logger.
func (s *Screen) Clone() mcmc.Monitor {
	return &Screen{base: s.unbound(), logger: s.logger}
}
