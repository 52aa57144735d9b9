package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

func sampleResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		ThreatLevel:    domain.SeverityHigh,
		Classification: "SQL Injection",
		Description:    "UNION-based payload observed in the id parameter of /login.",
		Confidence:     0.87,
		Recommendation: "Block the source address and enable parameterized queries.",
		AffectedAssets: []string{"10.0.0.128", "auth-service"},
	}
}

func TestPDFExporter_ExportAnalysis(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	data, err := exporter.ExportAnalysis(sampleResult(), "GET /login?id=1' UNION SELECT password FROM users--")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")), "output should start with PDF header")
	assert.True(t, bytes.Contains(data, []byte("%%EOF")), "output should end with EOF marker")
	assert.Greater(t, len(data), 1000)
}

func TestPDFExporter_AllSeverities(t *testing.T) {
	exporter := NewPDFExporter()
	for _, sev := range domain.Severities() {
		t.Run(sev.String(), func(t *testing.T) {
			result := sampleResult()
			result.ThreatLevel = sev
			data, err := exporter.ExportAnalysis(result, "log")
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
}

func TestPDFExporter_EdgeCases(t *testing.T) {
	exporter := NewPDFExporter()

	t.Run("no assets and no input", func(t *testing.T) {
		result := sampleResult()
		result.AffectedAssets = []string{}
		data, err := exporter.ExportAnalysis(result, "")
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("many assets and long input span pages", func(t *testing.T) {
		result := sampleResult()
		result.AffectedAssets = nil
		for i := 0; i < 80; i++ {
			result.AffectedAssets = append(result.AffectedAssets, strings.Repeat("host-", 30))
		}
		data, err := exporter.ExportAnalysis(result, strings.Repeat("Oct 17 sshd[221]: Failed password for root from 45.33.22.11\n", 200))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("non latin text", func(t *testing.T) {
		result := sampleResult()
		result.Description = "Zugriff über Port 443 – verdächtig"
		_, err := exporter.ExportAnalysis(result, "naïve café ✓")
		assert.NoError(t, err)
	})
}

func TestPDFExporter_RejectsInvalidResult(t *testing.T) {
	result := sampleResult()
	result.Confidence = 2
	_, err := NewPDFExporter().ExportAnalysis(result, "log")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncate(strings.Repeat("é", 20), 10))
}
