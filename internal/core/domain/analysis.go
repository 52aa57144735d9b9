package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnalysisResult is the structured threat assessment produced by the forensic analyzer.
type AnalysisResult struct {
	ThreatLevel    Severity `json:"threatLevel"`
	Classification string   `json:"classification"`
	Description    string   `json:"description"`
	Confidence     float64  `json:"confidence"`
	Recommendation string   `json:"recommendation"`
	AffectedAssets []string `json:"affectedAssets"`
}

// Priority renders the remediation priority line shown next to a result.
func (r AnalysisResult) Priority() string {
	return r.ThreatLevel.Lower() + " remediation required"
}

// Validate checks the value constraints of a result.
func (r AnalysisResult) Validate() error {
	if !r.ThreatLevel.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSeverity, int(r.ThreatLevel))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.AffectedAssets == nil {
		return errors.New("affectedAssets is required")
	}
	return nil
}

// wireResult mirrors AnalysisResult with pointer fields so absent keys are detectable.
type wireResult struct {
	ThreatLevel    *Severity `json:"threatLevel"`
	Classification *string   `json:"classification"`
	Description    *string   `json:"description"`
	Confidence     *float64  `json:"confidence"`
	Recommendation *string   `json:"recommendation"`
	AffectedAssets *[]string `json:"affectedAssets"`
}

// ParseAnalysisResult decodes a model response into an AnalysisResult. It rejects
// invalid JSON, unknown keys, missing required keys, mistyped values, null values
// and out-of-range confidence. It never returns a partially filled result.
func ParseAnalysisResult(body []byte) (AnalysisResult, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(body)))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return AnalysisResult{}, fmt.Errorf("decode analysis result: %w", err)
	}
	if dec.More() {
		return AnalysisResult{}, errors.New("decode analysis result: trailing data after object")
	}

	var missing []string
	if w.ThreatLevel == nil {
		missing = append(missing, "threatLevel")
	}
	if w.Classification == nil {
		missing = append(missing, "classification")
	}
	if w.Description == nil {
		missing = append(missing, "description")
	}
	if w.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if w.Recommendation == nil {
		missing = append(missing, "recommendation")
	}
	if w.AffectedAssets == nil || *w.AffectedAssets == nil {
		missing = append(missing, "affectedAssets")
	}
	if len(missing) > 0 {
		return AnalysisResult{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	res := AnalysisResult{
		ThreatLevel:    *w.ThreatLevel,
		Classification: *w.Classification,
		Description:    *w.Description,
		Confidence:     *w.Confidence,
		Recommendation: *w.Recommendation,
		AffectedAssets: *w.AffectedAssets,
	}
	if err := res.Validate(); err != nil {
		return AnalysisResult{}, err
	}
	return res, nil
}
