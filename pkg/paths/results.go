package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvResultsDir = "TRACEHOUND_RESULTS_DIR"

// DefaultResultsDir is where test runners drop trace archives.
const DefaultResultsDir = "test-results"

// ResultsDir resolves the trace results directory. Precedence:
// environment, then the configured value, then the default.
func ResultsDir(configured string) string {
	if dir := strings.TrimSpace(os.Getenv(EnvResultsDir)); dir != "" {
		return filepath.Clean(ExpandHomePath(dir))
	}
	if dir := strings.TrimSpace(configured); dir != "" {
		return filepath.Clean(ExpandHomePath(dir))
	}
	return DefaultResultsDir
}
