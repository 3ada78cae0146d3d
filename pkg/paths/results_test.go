package paths

import (
	"path/filepath"
	"testing"
)

func TestResultsDirDefault(t *testing.T) {
	t.Setenv(EnvResultsDir, "")
	if got := ResultsDir(""); got != DefaultResultsDir {
		t.Fatalf("expected %q, got %q", DefaultResultsDir, got)
	}
}

func TestResultsDirUsesConfigured(t *testing.T) {
	t.Setenv(EnvResultsDir, "")
	if got := ResultsDir("artifacts/traces"); got != filepath.Join("artifacts", "traces") {
		t.Fatalf("unexpected results dir: %q", got)
	}
}

func TestResultsDirEnvWinsOverConfigured(t *testing.T) {
	t.Setenv(EnvResultsDir, "/var/traces")
	if got := ResultsDir("ignored"); got != "/var/traces" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestResultsDirExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvResultsDir, "~/runs")
	want := filepath.Join(home, "runs")
	if got := ResultsDir(""); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
