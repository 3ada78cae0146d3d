package trace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tracehound/tracehound/pkg/errors"
)

// Candidate is one discoverable trace archive.
type Candidate struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
	Stale   bool      `json:"stale"`
}

// Discover walks the results directory for trace archives, newest first.
// Archives older than staleAfter are flagged stale (never filtered; the
// caller decides how to present them). staleAfter <= 0 disables flagging.
func Discover(resultsDir string, staleAfter time.Duration) ([]Candidate, error) {
	if _, err := os.Stat(resultsDir); os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "results directory does not exist").
			WithContext("dir", resultsDir).
			WithRemediation("run your tests with tracing enabled or pass a trace path directly")
	}

	var candidates []Candidate
	err := filepath.WalkDir(resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Extraction caches contain copies of archive content;
			// discovering inside them would double-list traces.
			if strings.HasSuffix(d.Name(), cacheSuffix) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".zip") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		candidates = append(candidates, Candidate{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidPath, "walking results directory").
			WithContext("dir", resultsDir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModTime.After(candidates[j].ModTime)
	})

	if staleAfter > 0 {
		cutoff := time.Now().Add(-staleAfter)
		for i := range candidates {
			candidates[i].Stale = candidates[i].ModTime.Before(cutoff)
		}
	}

	return candidates, nil
}
