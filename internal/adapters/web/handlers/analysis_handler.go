package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/core/ports"
	"github.com/lcalzada-xor/aegis/internal/core/services/analysis"
)

// AnalysisHandler serves the forensic analyzer endpoints.
type AnalysisHandler struct {
	Workbench *analysis.Workbench
	Exporter  ports.ReportExporter
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(workbench *analysis.Workbench, exporter ports.ReportExporter) *AnalysisHandler {
	return &AnalysisHandler{
		Workbench: workbench,
		Exporter:  exporter,
	}
}

type analyzeRequest struct {
	Input string `json:"input"`
}

type analyzeResponse struct {
	Result   domain.AnalysisResult `json:"result"`
	Priority string                `json:"priority"`
}

// HandleAnalyze submits log text and waits for the verdict. The analysis keeps
// running if the client goes away; its outcome is then visible through
// HandleGetAnalyzer.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.Workbench.Submit(r.Context(), req.Input)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "Input must not be empty")
		return
	case errors.Is(err, domain.ErrAnalysisInFlight):
		writeError(w, http.StatusConflict, "An analysis is already in progress")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	select {
	case <-r.Context().Done():
		slog.Debug("Analyze client went away before completion")
	case o := <-outcome:
		switch {
		case o.Discarded:
			writeError(w, http.StatusConflict, "Analysis was discarded")
		case o.Err != nil:
			writeError(w, http.StatusBadGateway, analysis.FailureMessage)
		default:
			writeJSON(w, http.StatusOK, analyzeResponse{Result: o.Result, Priority: o.Result.Priority()})
		}
	}
}

// HandleGetAnalyzer returns the analyzer read model.
func (h *AnalysisHandler) HandleGetAnalyzer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Workbench.Snapshot())
}

// HandleResetAnalyzer clears the analyzer.
func (h *AnalysisHandler) HandleResetAnalyzer(w http.ResponseWriter, r *http.Request) {
	h.Workbench.Reset()
	writeJSON(w, http.StatusOK, h.Workbench.Snapshot())
}

// HandleExportReport renders an analysis result as a PDF. The body carries the
// result and, optionally, the analyzed input. An empty result falls back to
// the analyzer's current result.
func (h *AnalysisHandler) HandleExportReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result json.RawMessage `json:"result"`
		Input  string          `json:"input"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		result domain.AnalysisResult
		input  = req.Input
	)
	if len(req.Result) == 0 || string(req.Result) == "null" {
		snap := h.Workbench.Snapshot()
		if snap.Result == nil {
			writeError(w, http.StatusBadRequest, "No analysis result to export")
			return
		}
		result = *snap.Result
		if input == "" {
			input = snap.Input
		}
	} else {
		parsed, err := domain.ParseAnalysisResult(req.Result)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid analysis result: "+err.Error())
			return
		}
		result = parsed
	}

	pdf, err := h.Exporter.ExportAnalysis(result, input)
	if err != nil {
		slog.Error("Report export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	filename := fmt.Sprintf("forensic-report-%s.pdf", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
