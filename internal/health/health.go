// Package health runs readiness checks against the coach's dependencies.
//
// The same [Checker] list backs two surfaces:
//
//   - the -check preflight of cmd/carecoach, which prints a [Report];
//   - optional HTTP probes next to the metrics endpoint: /healthz always
//     returns 200, /readyz returns 200 only when every checker passes.
//
// HTTP responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single check may take before the
// context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "gateway",
	// "microphone"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error

	// Optional checks are reported but do not fail the overall status.
	Optional bool
}

// Outcome is the result of one checker.
type Outcome struct {
	Name     string
	Err      error
	Optional bool
	Elapsed  time.Duration
}

// Report is the result of a [Run].
type Report []Outcome

// OK reports whether every required check passed.
func (r Report) OK() bool {
	for _, o := range r {
		if o.Err != nil && !o.Optional {
			return false
		}
	}
	return true
}

// WriteTo prints one line per check.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, o := range r {
		status := "ok"
		switch {
		case o.Err != nil && o.Optional:
			status = "warn: " + o.Err.Error()
		case o.Err != nil:
			status = "FAIL: " + o.Err.Error()
		}
		m, err := fmt.Fprintf(w, "%-12s %s (%s)\n", o.Name, status, o.Elapsed.Round(time.Millisecond))
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Run evaluates checkers sequentially in the order provided. Each checker is
// given a context with a [checkTimeout] deadline derived from ctx.
func Run(ctx context.Context, checkers ...Checker) Report {
	report := make(Report, 0, len(checkers))
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		err := c.Check(cctx)
		cancel()
		report = append(report, Outcome{
			Name:     c.Name,
			Err:      err,
			Optional: c.Optional,
			Elapsed:  time.Since(start),
		})
	}
	return report
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every required
// [Checker] passes.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := Run(r.Context(), h.checkers...)

	checks := make(map[string]string, len(report))
	for _, o := range report {
		if o.Err != nil {
			checks[o.Name] = "fail: " + o.Err.Error()
		} else {
			checks[o.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !report.OK() {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
