// Package analysis drives the analyzer view: it accepts log text, runs one
// forensic analysis at a time and exposes the outcome as a read model.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
)

// Status is the lifecycle state of the workbench.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusResult  Status = "result"
	StatusFailed  Status = "failed"
)

// FailureMessage is the only failure text ever shown to the operator.
const FailureMessage = "Analysis failed. Check your API key or network connection."

// Snapshot is the analyzer read model.
type Snapshot struct {
	Status      Status                 `json:"status"`
	Input       string                 `json:"input"`
	Result      *domain.AnalysisResult `json:"result,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	Error       string                 `json:"error,omitempty"`
	SubmittedAt *time.Time             `json:"submittedAt,omitempty"`
}

// Outcome is delivered once per submission.
type Outcome struct {
	Result domain.AnalysisResult
	Err    error
	// Discarded is set when the workbench was reset while the request ran.
	Discarded bool
}

// Workbench serializes submissions to a ForensicAnalyzer.
type Workbench struct {
	analyzer ports.ForensicAnalyzer
	now      func() time.Time

	mu          sync.Mutex
	status      Status
	input       string
	result      *domain.AnalysisResult
	submittedAt time.Time
	generation  uint64
}

// NewWorkbench returns an idle workbench.
func NewWorkbench(analyzer ports.ForensicAnalyzer) *Workbench {
	return &Workbench{
		analyzer: analyzer,
		now:      time.Now,
		status:   StatusIdle,
	}
}

// SetInput replaces the text buffer without submitting it.
func (w *Workbench) SetInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = text
}

// Submit starts an analysis of text. Blank text returns domain.ErrEmptyInput
// and a pending request returns domain.ErrAnalysisInFlight; neither changes
// state. The request is detached from ctx cancellation so that a caller going
// away does not abort it. The returned channel receives exactly one Outcome.
func (w *Workbench) Submit(ctx context.Context, text string) (<-chan Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	w.mu.Lock()
	if w.status == StatusLoading {
		w.mu.Unlock()
		return nil, domain.ErrAnalysisInFlight
	}
	w.generation++
	gen := w.generation
	w.status = StatusLoading
	w.input = text
	w.result = nil
	w.submittedAt = w.now()
	w.mu.Unlock()

	out := make(chan Outcome, 1)
	go w.run(context.WithoutCancel(ctx), gen, text, out)
	return out, nil
}

func (w *Workbench) run(ctx context.Context, gen uint64, text string, out chan<- Outcome) {
	result, err := w.analyzer.Analyze(ctx, text)
	if err != nil && !errors.Is(err, domain.ErrAnalysisFailed) {
		err = &domain.AnalysisFailure{Kind: domain.FailureTransport, Err: err}
	}

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		slog.Debug("Discarding stale analysis response", "generation", gen)
		out <- Outcome{Err: err, Discarded: true}
		return
	}
	if err != nil {
		w.status = StatusFailed
		w.result = nil
	} else {
		w.status = StatusResult
		w.result = &result
	}
	w.mu.Unlock()

	out <- Outcome{Result: result, Err: err}
}

// Reset returns the workbench to idle and drops the input buffer. A request
// still in flight completes in the background and its response is ignored.
func (w *Workbench) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.status = StatusIdle
	w.input = ""
	w.result = nil
	w.submittedAt = time.Time{}
}

// Status returns the current lifecycle state.
func (w *Workbench) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Snapshot returns the read model.
func (w *Workbench) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Status: w.status,
		Input:  w.input,
	}
	if !w.submittedAt.IsZero() {
		at := w.submittedAt
		snap.SubmittedAt = &at
	}
	switch w.status {
	case StatusResult:
		r := *w.result
		r.AffectedAssets = append([]string(nil), w.result.AffectedAssets...)
		if r.AffectedAssets == nil {
			r.AffectedAssets = []string{}
		}
		snap.Result = &r
		snap.Priority = r.Priority()
	case StatusFailed:
		snap.Error = FailureMessage
	}
	return snap
}

// ResetOnLeave returns a view-change listener that resets the workbench
// whenever the analyzer view is left.
func (w *Workbench) ResetOnLeave() func(from, to domain.View) {
	return func(from, to domain.View) {
		if from == domain.ViewAnalyzer && to != domain.ViewAnalyzer {
			w.Reset()
		}
	}
}
