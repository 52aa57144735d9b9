package ports

import (
	"context"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// ForensicAnalyzer classifies free-text log or packet data.
type ForensicAnalyzer interface {
	// Analyze issues exactly one completion request. Blank input is rejected with
	// domain.ErrEmptyInput before any request; every other failure satisfies
	// errors.Is(err, domain.ErrAnalysisFailed).
	Analyze(ctx context.Context, logText string) (domain.AnalysisResult, error)
}

// ReportExporter renders an analysis result into a downloadable document.
type ReportExporter interface {
	ExportAnalysis(result domain.AnalysisResult, input string) ([]byte, error)
}
