package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/burstmc/internal/testutil"
)

// SetupAppTest writes the analysis files to a temporary directory and
// creates an app over it with debug logging captured in a buffer.
func SetupAppTest(t *testing.T, files map[string]string, opts ...Option) (*App, *testutil.SafeBuffer) {
	t.Helper()

	dir := testutil.WriteFiles(t, files)
	logBuffer := &testutil.SafeBuffer{}
	cfg := &Config{ConfigPath: dir, LogLevel: "debug", LogFormat: "text"}
	testApp := NewApp(logBuffer, cfg, opts...)

	t.Cleanup(func() {
		if os.Getenv("BURSTMC_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}

// outputPath returns a file path under a fresh temporary directory.
func outputPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}
