package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tracehound/tracehound/pkg/diagnose"
	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/report"
	"github.com/tracehound/tracehound/pkg/trace"
)

// reportViews maps the view segment of /api/report/{view} onto the pure
// projections. Screenshot, console and around queries carry parameters
// and get their own endpoints.
var reportViews = map[string]func(*trace.Context) any{
	"summary":     func(tc *trace.Context) any { return report.Summary(tc) },
	"errors":      func(tc *trace.Context) any { return report.Errors(tc) },
	"actions":     func(tc *trace.Context) any { return report.Actions(tc) },
	"screenshots": func(tc *trace.Context) any { return report.Screenshots(tc) },
	"timeline":    func(tc *trace.Context) any { return report.Timeline(tc) },
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	candidates, err := trace.Discover(s.cfg.ResultsDir, s.cfg.StaleAfter)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"traces": candidates,
		"count":  len(candidates),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	project, ok := reportViews[view]
	if !ok {
		err := errors.New(errors.ErrCodeInvalidQuery, fmt.Sprintf("unknown report view %q", view)).
			WithRemediation("use one of summary, errors, actions, screenshots, timeline")
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	tc, err := s.loadTrace(r)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.respondEnvelope(w, view, tc.SourcePath, project(tc))
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	tc, err := s.loadTrace(r)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	rep := diagnose.Run(r.Context(), tc, diagnose.Options{
		Verbose: queryBool(r, "verbose"),
	})
	metricDiagnoseIssues.Observe(float64(rep.TotalIssues))
	s.respondEnvelope(w, "diagnose", tc.SourcePath, rep)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	opts := report.ScreenshotOptions{
		At:      strings.TrimSpace(r.URL.Query().Get("at")),
		Context: -1,
	}
	if v := strings.TrimSpace(r.URL.Query().Get("context")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			qerr := errors.New(errors.ErrCodeInvalidQuery,
				fmt.Sprintf("context must be a non-negative integer, got %q", v))
			s.writeError(w, http.StatusBadRequest, qerr)
			return
		}
		opts.Context = n
	}

	tc, err := s.loadTrace(r)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	view, err := report.Screenshot(tc, opts)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}
	s.respondEnvelope(w, "screenshot", tc.SourcePath, view)
}

// handleResource streams a content-addressed blob from the trace's
// resources directory. Blobs never change for a given name, hence the
// immutable cache lifetime.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("sha1"))
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		err := errors.New(errors.ErrCodeInvalidQuery, "sha1 must be a bare resource name").
			WithContext("sha1", name)
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	tc, err := s.loadTrace(r)
	if err != nil {
		s.writeError(w, statusForError(err), err)
		return
	}

	path := tc.ResourcePath(name)
	if _, err := os.Stat(path); err != nil {
		nferr := errors.New(errors.ErrCodeNotFound, fmt.Sprintf("resource %q not found in trace", name))
		s.writeError(w, http.StatusNotFound, nferr)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

// loadTrace resolves the trace query parameter into a fresh Context.
func (s *Server) loadTrace(r *http.Request) (*trace.Context, error) {
	path := strings.TrimSpace(r.URL.Query().Get("trace"))
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "missing trace query parameter").
			WithRemediation("pass ?trace=<archive or directory path>")
	}

	tc, stats, err := trace.LoadContext(r.Context(), trace.IngestOptions{
		Path:   path,
		Logger: s.logger,
	})
	if err != nil {
		return nil, err
	}

	metricTracesLoaded.Inc()
	metricParseWarnings.Add(float64(stats.Skipped))
	return tc, nil
}

// respondEnvelope writes the same {command, tracePath, results} document
// the CLI prints, so API consumers and CLI consumers share one schema.
func (s *Server) respondEnvelope(w http.ResponseWriter, command, tracePath string, results any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = report.WriteEnvelope(w, command, tracePath, results)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// writeError sends the CLI's error envelope with an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = report.WriteError(w, err)
}

// statusForError maps domain error codes onto HTTP statuses.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidQuery, errors.ErrCodeSelection:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidArchive, errors.ErrCodeInvalidPath:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func queryBool(r *http.Request, key string) bool {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	return v == "1" || strings.EqualFold(v, "true")
}
