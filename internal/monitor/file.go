package monitor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/specialistvlad/burstmc/internal/mcmc"
)

// sharedFile is an output file shared by a monitor and its clones. It is
// opened by the first OpenStream and closed by the last CloseStream.
type sharedFile struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *bufio.Writer
	refs   int
	header bool
}

// File writes a tab-separated trace: generation, log-posterior, then the
// monitored values.
type File struct {
	base
	out *sharedFile
}

var _ mcmc.Monitor = (*File)(nil)

// NewFile returns a file monitor writing to path.
func NewFile(path string, every int, nodes []string) *File {
	return &File{base: newBase(every, nodes), out: &sharedFile{path: path}}
}

// Path returns the output path.
func (f *File) Path() string { return f.out.path }

func (f *File) OpenStream() error {
	s := f.out
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", s.path, err)
			}
		}
		file, err := os.Create(s.path)
		if err != nil {
			return fmt.Errorf("opening trace file: %w", err)
		}
		s.f = file
		s.w = bufio.NewWriter(file)
		s.header = false
	}
	s.refs++
	return nil
}

func (f *File) CloseStream() error {
	s := f.out
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f, s.w = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flushing %s: %w", s.path, flushErr)
	}
	return closeErr
}

// PrintHeader writes the column names once per file.
func (f *File) PrintHeader() error {
	cols, err := f.columns()
	if err != nil {
		return err
	}
	s := f.out
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return fmt.Errorf("trace file %s is not open", s.path)
	}
	if s.header {
		return nil
	}
	s.header = true
	_, err = fmt.Fprintln(s.w, strings.Join(append([]string{"Iteration", "Posterior"}, cols...), "\t"))
	return err
}

func (f *File) Monitor(generation int) error {
	if !f.due(generation) {
		return nil
	}
	lnPosterior, values, err := f.row()
	if err != nil {
		return err
	}
	fields := make([]string, 0, 2+len(values))
	fields = append(fields, strconv.Itoa(generation), formatFloat(lnPosterior))
	for _, v := range values {
		fields = append(fields, formatFloat(v))
	}

	s := f.out
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return fmt.Errorf("trace file %s is not open", s.path)
	}
	_, err = fmt.Fprintln(s.w, strings.Join(fields, "\t"))
	return err
}

// Clone returns an unbound copy sharing the same output file.
func (f *File) Clone() mcmc.Monitor {
	return &File{base: f.unbound(), out: f.out}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
