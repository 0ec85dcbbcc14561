// Package health serves the liveness and readiness endpoints of the podium
// metrics listener.
//
// /healthz answers 200 as long as the process serves HTTP. /readyz runs every
// registered [Checker] and answers 503 when any of them fails. Both respond
// with a JSON [Report].
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Status values used in [Report] and [CheckResult].
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Checker is a named readiness check.
type Checker struct {
	// Name keys the check in the /readyz report (e.g. "ffmpeg", "detectors").
	Name string

	// Check returns nil when the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Detail, if set, adds per-component state to the report whether or not
	// Check passed. The detectors check uses it to list every modality with
	// the reason it could not be loaded.
	Detail func() map[string]string
}

// CheckResult is the outcome of one [Checker].
type CheckResult struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a Handler evaluating checkers, in order, on each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

// Readyz answers 200 when every checker passes and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status != StatusOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// Evaluate runs all checkers, each under its own [checkTimeout] derived from
// ctx, and assembles the readiness report.
func (h *Handler) Evaluate(ctx context.Context) Report {
	rep := Report{Status: StatusOK, Checks: make(map[string]CheckResult, len(h.checkers))}
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		res := CheckResult{Status: StatusOK}
		if err != nil {
			res = CheckResult{Status: StatusFail, Error: err.Error()}
			rep.Status = StatusFail
		}
		if c.Detail != nil {
			res.Detail = c.Detail()
		}
		rep.Checks[c.Name] = res
	}
	return rep
}

// Register mounts both endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
