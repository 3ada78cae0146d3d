package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvLogDir = "TRACEHOUND_LOG_DIR"

func LogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return filepath.Clean(ExpandHomePath(dir))
	}
	return filepath.Join(".tracehound", "logs")
}

// ExpandHomePath resolves a leading ~ or ~/ against the user's home dir.
func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

func LogsBaseDirForWorkdir(workdir string) string {
	base := LogsBaseDir()
	if filepath.IsAbs(base) || strings.TrimSpace(workdir) == "" {
		return base
	}
	return filepath.Join(workdir, base)
}
