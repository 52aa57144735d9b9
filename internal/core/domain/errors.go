package domain

import (
	"errors"
	"fmt"
)

// Domain Errors
var (
	ErrUnknownSeverity = errors.New("unknown severity")
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrUnknownView     = errors.New("unknown view")

	// ErrAnalysisFailed is the single failure signal surfaced to analyzer callers.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrEmptyInput is returned when the analyzer input is empty or whitespace.
	ErrEmptyInput = errors.New("analysis input is empty")
	// ErrAnalysisInFlight is returned when a submission overlaps an outstanding one.
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	// ErrEventNotFound is returned when an event id is not in the ring.
	ErrEventNotFound = errors.New("event not found")
)

// FailureKind classifies why an analysis failed. It is diagnostic only.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureSchema    FailureKind = "schema"
)

// AnalysisFailure carries the diagnostic cause of a failed analysis.
// errors.Is(err, ErrAnalysisFailed) holds for every AnalysisFailure.
type AnalysisFailure struct {
	Kind FailureKind
	Err  error
}

func (f *AnalysisFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", ErrAnalysisFailed, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", ErrAnalysisFailed, f.Kind, f.Err)
}

func (f *AnalysisFailure) Unwrap() error {
	return f.Err
}

func (f *AnalysisFailure) Is(target error) bool {
	return target == ErrAnalysisFailed
}

// NewTransportFailure wraps a failure to reach the completion service.
func NewTransportFailure(err error) error {
	return &AnalysisFailure{Kind: FailureTransport, Err: err}
}

// NewSchemaFailure wraps a response that violated the result contract.
func NewSchemaFailure(err error) error {
	return &AnalysisFailure{Kind: FailureSchema, Err: err}
}

// FailureKindOf extracts the diagnostic kind of err, or "" when err is not an AnalysisFailure.
func FailureKindOf(err error) FailureKind {
	var f *AnalysisFailure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
