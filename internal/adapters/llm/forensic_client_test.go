package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
)

const validVerdict = `{
	"threatLevel": "HIGH",
	"classification": "SQL Injection",
	"description": "UNION-based payload in query string",
	"confidence": 0.92,
	"recommendation": "Block source at the WAF",
	"affectedAssets": ["10.0.0.128", "api-gateway"]
}`

type capturedRequest struct {
	Auth string
	Body map[string]any
}

// fakeCompletions serves /chat/completions with the given assistant content.
func fakeCompletions(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32, chan capturedRequest) {
	t.Helper()
	var hits atomic.Int32
	captured := make(chan capturedRequest, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured <- capturedRequest{Auth: r.Header.Get("Authorization"), Body: body}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"invalid_request_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, captured
}

func newTestClient(baseURL string) *ForensicClient {
	return NewForensicClient(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: baseURL + "/v1",
		Timeout: 5 * time.Second,
	})
}

func TestForensicClient_Success(t *testing.T) {
	srv, hits, captured := fakeCompletions(t, http.StatusOK, validVerdict)
	client := newTestClient(srv.URL)

	result, err := client.Analyze(context.Background(), "GET /login?id=1' UNION SELECT * FROM users--")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, domain.SeverityHigh, result.ThreatLevel)
	assert.Equal(t, "SQL Injection", result.Classification)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, []string{"10.0.0.128", "api-gateway"}, result.AffectedAssets)

	req := <-captured
	assert.Equal(t, "Bearer test-key", req.Auth)
	assert.Equal(t, "test-model", req.Body["model"])

	messages, ok := req.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	user := messages[1].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, SystemInstruction, system["content"])
	assert.Equal(t, "user", user["role"])
	assert.True(t, strings.HasPrefix(user["content"].(string), PromptPrefix))
	assert.Contains(t, user["content"], "UNION SELECT")

	format, ok := req.Body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	schemaEnvelope := format["json_schema"].(map[string]any)
	assert.Equal(t, true, schemaEnvelope["strict"])
	schema := schemaEnvelope["schema"].(map[string]any)
	assert.ElementsMatch(t,
		[]any{"threatLevel", "classification", "description", "confidence", "recommendation", "affectedAssets"},
		schema["required"])
}

func TestForensicClient_EmptyInputSkipsRequest(t *testing.T) {
	srv, hits, _ := fakeCompletions(t, http.StatusOK, validVerdict)
	client := newTestClient(srv.URL)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := client.Analyze(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestForensicClient_SchemaFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "The traffic looks malicious."},
		{"missing recommendation", `{"threatLevel":"LOW","classification":"Benign","description":"ok","confidence":0.5,"affectedAssets":[]}`},
		{"unknown level", `{"threatLevel":"SEVERE","classification":"x","description":"x","confidence":0.5,"recommendation":"x","affectedAssets":[]}`},
		{"confidence out of range", `{"threatLevel":"LOW","classification":"x","description":"x","confidence":1.5,"recommendation":"x","affectedAssets":[]}`},
		{"markdown fenced", "```json\n" + validVerdict + "\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := fakeCompletions(t, http.StatusOK, tt.content)
			client := newTestClient(srv.URL)

			result, err := client.Analyze(context.Background(), "some log")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
			assert.Equal(t, domain.FailureSchema, domain.FailureKindOf(err))
			assert.Equal(t, domain.AnalysisResult{}, result)
		})
	}
}

func TestForensicClient_TransportFailure(t *testing.T) {
	srv, _, _ := fakeCompletions(t, http.StatusTooManyRequests, "")
	client := newTestClient(srv.URL)

	_, err := client.Analyze(context.Background(), "some log")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Equal(t, domain.FailureTransport, domain.FailureKindOf(err))
}

func TestForensicClient_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newTestClient(url)
	_, err := client.Analyze(context.Background(), "some log")
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Equal(t, domain.FailureTransport, domain.FailureKindOf(err))
}

func TestForensicClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewForensicClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Analyze(context.Background(), "some log")
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Equal(t, domain.FailureTransport, domain.FailureKindOf(err))
}

func TestForensicClient_CanceledContext(t *testing.T) {
	srv, _, _ := fakeCompletions(t, http.StatusOK, validVerdict)
	client := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Analyze(ctx, "some log")
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewForensicClient_Defaults(t *testing.T) {
	client := NewForensicClient(Config{})
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, DefaultBaseURL, client.cfg.BaseURL)
}
