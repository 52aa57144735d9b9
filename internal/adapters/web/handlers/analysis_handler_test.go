package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/services/analysis"
)

func TestAnalysisHandler_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockSetup      func(m *MockAnalyzer)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "Verdict",
			body: `{"input":"GET /login?id=1' OR '1'='1"}`,
			mockSetup: func(m *MockAnalyzer) {
				m.On("Analyze", mock.Anything, "GET /login?id=1' OR '1'='1").Return(sampleResult(), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Whitespace input",
			body:           `{"input":"   \n"}`,
			mockSetup:      func(m *MockAnalyzer) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Input must not be empty",
		},
		{
			name:           "Malformed body",
			body:           `input=abc`,
			mockSetup:      func(m *MockAnalyzer) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request body",
		},
		{
			name: "Schema failure",
			body: `{"input":"sshd: Failed password"}`,
			mockSetup: func(m *MockAnalyzer) {
				m.On("Analyze", mock.Anything, mock.Anything).
					Return(domain.AnalysisResult{}, domain.NewSchemaFailure(errors.New("missing confidence")))
			},
			expectedStatus: http.StatusBadGateway,
			expectedError:  analysis.FailureMessage,
		},
		{
			name: "Transport failure",
			body: `{"input":"sshd: Failed password"}`,
			mockSetup: func(m *MockAnalyzer) {
				m.On("Analyze", mock.Anything, mock.Anything).
					Return(domain.AnalysisResult{}, errors.New("dial tcp: connection refused"))
			},
			expectedStatus: http.StatusBadGateway,
			expectedError:  analysis.FailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := new(MockAnalyzer)
			tt.mockSetup(analyzer)
			h := NewAnalysisHandler(analysis.NewWorkbench(analyzer), new(MockExporter))

			rr := httptest.NewRecorder()
			h.HandleAnalyze(rr, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, body["error"])
			} else {
				assert.Equal(t, "high remediation required", body["priority"])
				result := body["result"].(map[string]any)
				assert.Equal(t, "SQL Injection", result["classification"])
				assert.Equal(t, "HIGH", result["threatLevel"])
			}
			analyzer.AssertExpectations(t)
		})
	}
}

func TestAnalysisHandler_AnalyzeWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	analyzer := new(MockAnalyzer)
	analyzer.On("Analyze", mock.Anything, "first").
		Run(func(mock.Arguments) { <-release }).
		Return(sampleResult(), nil).Once()

	wb := analysis.NewWorkbench(analyzer)
	h := NewAnalysisHandler(wb, new(MockExporter))

	done := make(chan int, 1)
	go func() {
		rr := httptest.NewRecorder()
		h.HandleAnalyze(rr, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"input":"first"}`)))
		done <- rr.Code
	}()

	require.Eventually(t, func() bool { return wb.Status() == analysis.StatusLoading }, time.Second, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	h.HandleAnalyze(rr, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"input":"second"}`)))
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
	analyzer.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestAnalysisHandler_ResetDiscardsPendingResponse(t *testing.T) {
	release := make(chan struct{})
	analyzer := new(MockAnalyzer)
	analyzer.On("Analyze", mock.Anything, "slow").
		Run(func(mock.Arguments) { <-release }).
		Return(sampleResult(), nil)

	wb := analysis.NewWorkbench(analyzer)
	h := NewAnalysisHandler(wb, new(MockExporter))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rr := httptest.NewRecorder()
		h.HandleAnalyze(rr, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"input":"slow"}`)))
		done <- rr
	}()
	require.Eventually(t, func() bool { return wb.Status() == analysis.StatusLoading }, time.Second, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	h.HandleResetAnalyzer(rr, httptest.NewRequest(http.MethodDelete, "/api/analyzer", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	close(release)
	assert.Equal(t, http.StatusConflict, (<-done).Code)
	assert.Equal(t, analysis.StatusIdle, wb.Status())
}

func TestAnalysisHandler_ClientGoneKeepsAnalysis(t *testing.T) {
	release := make(chan struct{})
	analyzer := new(MockAnalyzer)
	analyzer.On("Analyze", mock.Anything, "log").
		Run(func(mock.Arguments) { <-release }).
		Return(sampleResult(), nil)

	wb := analysis.NewWorkbench(analyzer)
	h := NewAnalysisHandler(wb, new(MockExporter))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"input":"log"}`)).WithContext(ctx)
	cancel()
	h.HandleAnalyze(httptest.NewRecorder(), req)

	close(release)
	require.Eventually(t, func() bool { return wb.Status() == analysis.StatusResult }, time.Second, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	h.HandleGetAnalyzer(rr, httptest.NewRequest(http.MethodGet, "/api/analyzer", nil))
	var snap analysis.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, analysis.StatusResult, snap.Status)
	assert.Equal(t, "log", snap.Input)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "SQL Injection", snap.Result.Classification)
}

func TestAnalysisHandler_ExportReport(t *testing.T) {
	t.Run("Result in body", func(t *testing.T) {
		exporter := new(MockExporter)
		exporter.On("ExportAnalysis", sampleResult(), "raw log").Return([]byte("%PDF-1.3 fake"), nil)
		h := NewAnalysisHandler(analysis.NewWorkbench(new(MockAnalyzer)), exporter)

		body, err := json.Marshal(map[string]any{"result": sampleResult(), "input": "raw log"})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		h.HandleExportReport(rr, httptest.NewRequest(http.MethodPost, "/api/reports/analysis", strings.NewReader(string(body))))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "forensic-report-")
		assert.Equal(t, "%PDF-1.3 fake", rr.Body.String())
		exporter.AssertExpectations(t)
	})

	t.Run("Falls back to current result", func(t *testing.T) {
		analyzer := new(MockAnalyzer)
		analyzer.On("Analyze", mock.Anything, "current log").Return(sampleResult(), nil)
		wb := analysis.NewWorkbench(analyzer)
		outcome, err := wb.Submit(context.Background(), "current log")
		require.NoError(t, err)
		<-outcome

		exporter := new(MockExporter)
		exporter.On("ExportAnalysis", sampleResult(), "current log").Return([]byte("%PDF"), nil)
		h := NewAnalysisHandler(wb, exporter)

		rr := httptest.NewRecorder()
		h.HandleExportReport(rr, httptest.NewRequest(http.MethodPost, "/api/reports/analysis", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusOK, rr.Code)
		exporter.AssertExpectations(t)
	})

	t.Run("Nothing to export", func(t *testing.T) {
		h := NewAnalysisHandler(analysis.NewWorkbench(new(MockAnalyzer)), new(MockExporter))
		rr := httptest.NewRecorder()
		h.HandleExportReport(rr, httptest.NewRequest(http.MethodPost, "/api/reports/analysis", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Invalid result", func(t *testing.T) {
		h := NewAnalysisHandler(analysis.NewWorkbench(new(MockAnalyzer)), new(MockExporter))
		rr := httptest.NewRecorder()
		h.HandleExportReport(rr, httptest.NewRequest(http.MethodPost, "/api/reports/analysis",
			strings.NewReader(`{"result":{"threatLevel":"HIGH","classification":"x"}}`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Exporter error", func(t *testing.T) {
		exporter := new(MockExporter)
		exporter.On("ExportAnalysis", mock.Anything, mock.Anything).Return(nil, errors.New("font missing"))
		h := NewAnalysisHandler(analysis.NewWorkbench(new(MockAnalyzer)), exporter)

		body, err := json.Marshal(map[string]any{"result": sampleResult()})
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		h.HandleExportReport(rr, httptest.NewRequest(http.MethodPost, "/api/reports/analysis", strings.NewReader(string(body))))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
