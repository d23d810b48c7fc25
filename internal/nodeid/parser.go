// internal/nodeid/parser.go
package nodeid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmpty is returned when an empty name is parsed.
var ErrEmpty = errors.New("node name cannot be empty")

var (
	segmentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	indexRegex   = regexp.MustCompile(`^(.*)\[(\d+)\]$`)
)

// Parse creates a new Address by parsing its canonical string representation.
func Parse(raw string) (*Address, error) {
	if raw == "" {
		return nil, ErrEmpty
	}

	addr := &Address{Index: NoIndex}
	body := raw
	if m := indexRegex.FindStringSubmatch(raw); m != nil {
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid element index in %q: %w", raw, err)
		}
		body = m[1]
		addr.Index = index
	}

	for _, segment := range strings.Split(body, ".") {
		if segment == "" {
			return nil, fmt.Errorf("node name %q contains an empty segment", raw)
		}
		if !segmentRegex.MatchString(segment) {
			return nil, fmt.Errorf("invalid segment %q in node name %q", segment, raw)
		}
		addr.Segments = append(addr.Segments, segment)
	}

	return addr, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// hard-coded names in builtin models and tests.
func MustParse(raw string) *Address {
	addr, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return addr
}
