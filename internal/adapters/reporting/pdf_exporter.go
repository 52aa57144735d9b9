package reporting

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

// maxInputExcerpt bounds how much of the analyzed log is reproduced.
const maxInputExcerpt = 3000

// PDFExporter renders forensic analysis results as PDF reports.
// It implements ports.ReportExporter.
type PDFExporter struct {
	GeneratedBy string
	now         func() time.Time
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{
		GeneratedBy: "Aegis Security Dashboard",
		now:         time.Now,
	}
}

// ExportAnalysis generates a PDF report for one analysis result and the log
// text it was produced from.
func (e *PDFExporter) ExportAnalysis(result domain.AnalysisResult, input string) ([]byte, error) {
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis result: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	reportID := uuid.NewString()
	pdf.SetTitle("Forensic Analysis Report", false)
	pdf.SetCreator(e.GeneratedBy, false)
	pdf.SetFooterFunc(func() {
		e.addFooter(pdf, reportID)
	})
	pdf.AddPage()

	e.addHeader(pdf)
	e.addVerdict(pdf, tr, result)
	e.addSection(pdf, tr, "Findings", result.Description)
	e.addRecommendation(pdf, tr, result)
	e.addAssets(pdf, tr, result.AffectedAssets)
	e.addInput(pdf, tr, input)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, "Forensic Analysis Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", e.now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// addVerdict draws the colored threat level box with classification and confidence.
func (e *PDFExporter) addVerdict(pdf *gofpdf.Fpdf, tr func(string) string, result domain.AnalysisResult) {
	r, g, b := severityColor(result.ThreatLevel)
	pdf.SetFillColor(r, g, b)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 30, "F")

	pdf.SetFont("Arial", "B", 28)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(25, y+5)
	pdf.CellFormat(70, 20, result.ThreatLevel.String(), "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 14)
	pdf.SetXY(100, y+6)
	pdf.CellFormat(85, 9, tr(truncate(result.Classification, 40)), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.SetXY(100, y+16)
	pdf.CellFormat(85, 8, fmt.Sprintf("Confidence: %.0f%%", result.Confidence*100), "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

func (e *PDFExporter) addSection(pdf *gofpdf.Fpdf, tr func(string) string, title, body string) {
	sectionTitle(pdf, title)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.MultiCell(0, 5, tr(body), "", "L", false)
	pdf.Ln(6)
}

func (e *PDFExporter) addRecommendation(pdf *gofpdf.Fpdf, tr func(string) string, result domain.AnalysisResult) {
	sectionTitle(pdf, "Recommendation")

	r, g, b := severityColor(result.ThreatLevel)
	pdf.SetFillColor(r, g, b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(70, 6, strings.ToUpper(result.Priority()), "", 1, "C", true, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.MultiCell(0, 5, tr(result.Recommendation), "", "L", false)
	pdf.Ln(6)
}

func (e *PDFExporter) addAssets(pdf *gofpdf.Fpdf, tr func(string) string, assets []string) {
	sectionTitle(pdf, "Affected Assets")

	if len(assets) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No affected assets identified", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(15, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(155, 8, "Asset", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for i, asset := range assets {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(155, 7, tr(truncate(asset, 90)), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

// addInput reproduces the analyzed log text in a monospace block.
func (e *PDFExporter) addInput(pdf *gofpdf.Fpdf, tr func(string) string, input string) {
	if strings.TrimSpace(input) == "" {
		return
	}
	sectionTitle(pdf, "Analyzed Input")

	pdf.SetFont("Courier", "", 8)
	pdf.SetTextColor(80, 80, 80)
	pdf.SetFillColor(245, 245, 245)
	pdf.MultiCell(0, 4, tr(truncate(input, maxInputExcerpt)), "", "L", true)
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, reportID string) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footer := fmt.Sprintf("Generated by %s | Report ID: %s | Page %d", e.GeneratedBy, reportID[:8], pdf.PageNo())
	pdf.CellFormat(0, 5, footer, "", 1, "C", false, 0, "")
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

// severityColor returns the RGB color of a threat level.
func severityColor(s domain.Severity) (r, g, b int) {
	switch s {
	case domain.SeverityCritical:
		return 220, 53, 69
	case domain.SeverityHigh:
		return 255, 149, 0
	case domain.SeverityMedium:
		return 255, 204, 0
	case domain.SeverityLow:
		return 52, 199, 89
	default:
		return 0, 102, 204
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
