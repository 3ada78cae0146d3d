package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
)

// shardPattern matches context shards: trace.trace or <n>-trace.trace.
var shardPattern = regexp.MustCompile(`^(?:(\d+)-)?trace\.trace$`)

// runnerShardName carries the runner-level events.
const runnerShardName = "test.trace"

// ParseStats summarizes one parsing pass.
type ParseStats struct {
	Files   int          `json:"files"`
	Lines   int          `json:"lines"`
	Parsed  int          `json:"parsed"`
	Skipped int          `json:"skipped"`
	ByKind  map[Kind]int `json:"byKind,omitempty"`
}

func (s *ParseStats) merge(other ParseStats) {
	s.Files += other.Files
	s.Lines += other.Lines
	s.Parsed += other.Parsed
	s.Skipped += other.Skipped
	for kind, count := range other.ByKind {
		if s.ByKind == nil {
			s.ByKind = make(map[Kind]int)
		}
		s.ByKind[kind] += count
	}
}

// ParseReader decodes line-delimited events from r. A malformed line is
// skipped with a warning; it never aborts the pass.
func ParseReader(r io.Reader, name string, logger *logging.Logger) ([]Event, ParseStats, error) {
	stats := ParseStats{Files: 1, ByKind: make(map[Kind]int)}
	var events []Event

	scanner := bufio.NewScanner(r)
	// Allow large payloads such as frame-snapshot HTML.
	const maxCapacity = 8 * 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxCapacity)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		event, err := DecodeEvent([]byte(line))
		if err != nil {
			stats.Skipped++
			logWarn(logger, logging.CategoryParser, "line_skipped",
				fmt.Sprintf("skipping malformed line %d in %s: %v", lineNo, name, err),
				map[string]any{"file": name, "line": lineNo})
			continue
		}

		events = append(events, event)
		stats.Parsed++
		stats.ByKind[event.Kind()]++
	}

	if err := scanner.Err(); err != nil {
		return events, stats, errors.Wrap(err, errors.ErrCodeParse, fmt.Sprintf("reading %s", name)).
			WithContext("file", name).
			WithRecoverable(true)
	}

	return events, stats, nil
}

// ParseFile decodes one trace shard from disk.
func ParseFile(path string, logger *logging.Logger) ([]Event, ParseStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, errors.Wrap(err, errors.ErrCodeParse, "opening trace shard").
			WithContext("path", path).
			WithRecoverable(true)
	}
	defer file.Close()

	return ParseReader(file, filepath.Base(path), logger)
}

// ParseDir parses every shard in an extracted trace directory: the context
// shards in ascending numeric-prefix order, then the runner shard. A shard
// that cannot be read degrades to a warning; the remaining shards still
// contribute events.
func ParseDir(dir string, logger *logging.Logger) ([]Event, ParseStats, error) {
	shards, err := shardFiles(dir)
	if err != nil {
		return nil, ParseStats{}, err
	}
	if len(shards) == 0 {
		return nil, ParseStats{}, errors.New(errors.ErrCodeInvalidArchive, "no trace shards found").
			WithContext("dir", dir).
			WithRemediation("expected test.trace or trace.trace inside the trace directory")
	}

	var all []Event
	var stats ParseStats
	for _, shard := range shards {
		events, shardStats, err := ParseFile(shard, logger)
		stats.merge(shardStats)
		if err != nil {
			logWarn(logger, logging.CategoryParser, "shard_failed",
				fmt.Sprintf("shard %s unreadable: %v", filepath.Base(shard), err),
				map[string]any{"shard": shard})
		}
		all = append(all, events...)
	}

	return all, stats, nil
}

// shardFiles lists the parseable shards in dir: <n>-trace.trace sorted by
// numeric prefix (the bare trace.trace first), then test.trace.
func shardFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidPath, "reading trace directory").
			WithContext("dir", dir)
	}

	type shard struct {
		path   string
		prefix int
	}
	var contextShards []shard
	var runnerShard string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == runnerShardName {
			runnerShard = filepath.Join(dir, name)
			continue
		}
		m := shardPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		prefix := -1 // bare trace.trace sorts before numbered shards
		if m[1] != "" {
			prefix, _ = strconv.Atoi(m[1])
		}
		contextShards = append(contextShards, shard{path: filepath.Join(dir, name), prefix: prefix})
	}

	sort.Slice(contextShards, func(i, j int) bool { return contextShards[i].prefix < contextShards[j].prefix })

	paths := make([]string, 0, len(contextShards)+1)
	for _, s := range contextShards {
		paths = append(paths, s.path)
	}
	if runnerShard != "" {
		paths = append(paths, runnerShard)
	}
	return paths, nil
}
