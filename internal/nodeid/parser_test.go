// internal/nodeid/parser_test.go
package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectErr    bool
		expectedAddr *Address
	}{
		{
			name:         "simple name",
			raw:          "mu",
			expectedAddr: New("mu"),
		},
		{
			name:         "dotted name",
			raw:          "group.mu",
			expectedAddr: New("group", "mu"),
		},
		{
			name:         "element of a vector",
			raw:          "rates[2]",
			expectedAddr: NewElement(2, "rates"),
		},
		{
			name:         "zero index on dotted name",
			raw:          "tree.branch_lengths[0]",
			expectedAddr: NewElement(0, "tree", "branch_lengths"),
		},
		{
			name:      "error - empty string",
			raw:       "",
			expectErr: true,
		},
		{
			name:      "error - empty segment",
			raw:       "a..b",
			expectErr: true,
		},
		{
			name:      "error - index in the middle",
			raw:       "a[1].b",
			expectErr: true,
		},
		{
			name:      "error - non numeric index",
			raw:       "rates[x]",
			expectErr: true,
		},
		{
			name:      "error - leading digit",
			raw:       "1mu",
			expectErr: true,
		},
		{
			name:      "error - just a dot",
			raw:       ".",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, err := Parse(tc.raw)

			if tc.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, addr)
			assert.True(t, tc.expectedAddr.Equal(addr), "parsed %v, want %v", addr, tc.expectedAddr)
		})
	}
}

func TestParse_EmptyIsSentinel(t *testing.T) {
	_, err := Parse("")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a..b") })
	assert.NotPanics(t, func() { MustParse("a.b[3]") })
}
