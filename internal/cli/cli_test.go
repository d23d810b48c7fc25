package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/specialistvlad/burstmc/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	seed := uint64(0)
	tests := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "positional path with defaults",
			args: []string{"analysis.hcl"},
			want: &app.Config{ConfigPath: "analysis.hcl", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "long flag wins over shorthand",
			args: []string{"-config", "a.hcl", "-c", "b.hcl"},
			want: &app.Config{ConfigPath: "a.hcl", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "all options",
			args: []string{"-c", "dir", "-log-format", "JSON", "-log-level", "debug", "-healthcheck-port", "8080", "-workers", "3", "-seed", "0"},
			want: &app.Config{ConfigPath: "dir", LogFormat: "json", LogLevel: "debug", HealthcheckPort: 8080, WorkerCount: 3, Seed: &seed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, exit, err := Parse(tt.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.False(t, exit)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestParse_Exit(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		var out bytes.Buffer
		cfg, exit, err := Parse(args, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined: -nope"},
		{"bad log format", []string{"-log-format", "xml", "a.hcl"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "trace", "a.hcl"}, "invalid log-level"},
		{"negative workers", []string{"-workers", "-1", "a.hcl"}, "WorkerCount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.msg)
		})
	}
}
