package monitor

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"text/tabwriter"

	"github.com/specialistvlad/burstmc/internal/mcmc"
	"gonum.org/v1/gonum/stat"
)

// traceStore holds the samples collected by a trace monitor and its clones.
type traceStore struct {
	mu          sync.Mutex
	columns     []string
	generations []int
	lnPosterior []float64
	samples     [][]float64 // one slice per column
}

// Trace keeps samples in memory for summaries after the run.
type Trace struct {
	base
	store *traceStore
}

var _ mcmc.Monitor = (*Trace)(nil)

// NewTrace returns an in-memory trace monitor.
func NewTrace(every int, nodes []string) *Trace {
	return &Trace{base: newBase(every, nodes), store: &traceStore{}}
}

func (t *Trace) OpenStream() error  { return nil }
func (t *Trace) CloseStream() error { return nil }

func (t *Trace) PrintHeader() error {
	cols, err := t.columns()
	if err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.columns == nil {
		s.columns = cols
		s.samples = make([][]float64, len(cols))
	}
	return nil
}

func (t *Trace) Monitor(generation int) error {
	if !t.due(generation) {
		return nil
	}
	if err := t.PrintHeader(); err != nil {
		return err
	}
	lnPosterior, values, err := t.row()
	if err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) != len(s.columns) {
		return fmt.Errorf("trace row has %d values, want %d", len(values), len(s.columns))
	}
	s.generations = append(s.generations, generation)
	s.lnPosterior = append(s.lnPosterior, lnPosterior)
	for i, v := range values {
		s.samples[i] = append(s.samples[i], v)
	}
	return nil
}

// Clone returns an unbound copy recording into the same store.
func (t *Trace) Clone() mcmc.Monitor {
	return &Trace{base: t.unbound(), store: t.store}
}

// Generations returns the recorded generations.
func (t *Trace) Generations() []int {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return slices.Clone(t.store.generations)
}

// LnPosterior returns the recorded log-posteriors.
func (t *Trace) LnPosterior() []float64 {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return slices.Clone(t.store.lnPosterior)
}

// Samples returns the recorded values of one column.
func (t *Trace) Samples(column string) ([]float64, bool) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	i := slices.Index(t.store.columns, column)
	if i < 0 {
		return nil, false
	}
	return slices.Clone(t.store.samples[i]), true
}

// ColumnSummary describes the marginal samples of one column.
type ColumnSummary struct {
	Column string
	N      int
	Mean   float64
	StdDev float64
	Median float64
	Lower  float64 // 2.5% quantile
	Upper  float64 // 97.5% quantile
}

// Summary returns per-column statistics of the recorded samples, dropping the
// first burnin recorded rows.
func (t *Trace) Summary(burnin int) []ColumnSummary {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	out := make([]ColumnSummary, 0, len(t.store.columns))
	for i, col := range t.store.columns {
		xs := t.store.samples[i]
		if burnin < len(xs) {
			xs = xs[max(burnin, 0):]
		} else {
			xs = nil
		}
		cs := ColumnSummary{Column: col, N: len(xs)}
		if len(xs) > 0 {
			sorted := slices.Clone(xs)
			slices.Sort(sorted)
			cs.Mean, cs.StdDev = stat.MeanStdDev(xs, nil)
			cs.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			cs.Lower = stat.Quantile(0.025, stat.Empirical, sorted, nil)
			cs.Upper = stat.Quantile(0.975, stat.Empirical, sorted, nil)
		}
		out = append(out, cs)
	}
	return out
}

// WriteSummary writes Summary as a table.
func (t *Trace) WriteSummary(w io.Writer, burnin int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Column\tN\tMean\tStdDev\tMedian\t2.5%\t97.5%")
	for _, cs := range t.Summary(burnin) {
		fmt.Fprintf(tw, "%s\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
			cs.Column, cs.N, cs.Mean, cs.StdDev, cs.Median, cs.Lower, cs.Upper)
	}
	return tw.Flush()
}
