package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, logText string) (domain.AnalysisResult, error) {
	args := m.Called(ctx, logText)
	return args.Get(0).(domain.AnalysisResult), args.Error(1)
}

type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportAnalysis(result domain.AnalysisResult, input string) ([]byte, error) {
	args := m.Called(result, input)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		ThreatLevel:    domain.SeverityHigh,
		Classification: "SQL Injection",
		Description:    "UNION based injection against the login form",
		Confidence:     0.92,
		Recommendation: "Parameterize the login query",
		AffectedAssets: []string{"10.0.0.128"},
	}
}

func sampleEvent(id string, sev domain.Severity) domain.NetworkEvent {
	return domain.NetworkEvent{
		ID:        id,
		Timestamp: time.Date(2026, 10, 17, 14, 5, 9, 0, time.UTC),
		SourceIP:  "45.33.22.11",
		DestIP:    "10.0.0.128",
		Protocol:  domain.ProtocolTCP,
		Length:    512,
		Info:      "SYN scan",
		Severity:  sev,
	}
}
