package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/aegis/internal/core/domain"
	"github.com/lcalzada-xor/aegis/internal/telemetry"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of the Gemini API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-3-flash-preview"

	SystemInstruction = "You are a senior cybersecurity analyst. Analyze network logs and return structured JSON. " +
		"Identify if the activity is benign or malicious (DDoS, Brute Force, SQLi, etc.). Be precise and concise."

	PromptPrefix = "Analyze the following network log or packet data for malicious activity:"

	schemaName = "forensic_analysis"
)

// Config holds the connection settings of the language-model service.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration
}

// ForensicClient submits log text to a language model and decodes the
// structured verdict. It implements ports.ForensicAnalyzer.
type ForensicClient struct {
	cfg    Config
	client *openai.Client
	tracer trace.Tracer
}

// NewForensicClient builds a client. A missing API key is not rejected here;
// requests made without one fail as transport failures.
func NewForensicClient(cfg Config) *ForensicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}

	return &ForensicClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		tracer: telemetry.Tracer("llm"),
	}
}

// Model returns the model identifier requests are sent to.
func (c *ForensicClient) Model() string {
	return c.cfg.Model
}

// Analyze sends logText for classification. Every failure after the request
// is attempted matches domain.ErrAnalysisFailed; the underlying cause is only
// logged. Blank input returns domain.ErrEmptyInput without contacting the model.
func (c *ForensicClient) Analyze(ctx context.Context, logText string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(logText) == "" {
		return domain.AnalysisResult{}, domain.ErrEmptyInput
	}

	ctx, span := c.tracer.Start(ctx, "ForensicClient.Analyze",
		trace.WithAttributes(
			attribute.String("llm.model", c.cfg.Model),
			attribute.Int("llm.input_bytes", len(logText)),
		))
	defer span.End()

	start := time.Now()
	result, err := c.analyze(ctx, logText)
	telemetry.ObserveAnalysis(time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		slog.Warn("Forensic analysis failed",
			"model", c.cfg.Model,
			"kind", domain.FailureKindOf(err),
			"error", errors.Unwrap(err),
			"duration", time.Since(start))
		return domain.AnalysisResult{}, err
	}

	span.SetAttributes(attribute.String("analysis.threat_level", result.ThreatLevel.String()))
	slog.Info("Forensic analysis completed",
		"model", c.cfg.Model,
		"threat_level", result.ThreatLevel,
		"classification", result.Classification,
		"duration", time.Since(start))
	return result, nil
}

func (c *ForensicClient) analyze(ctx context.Context, logText string) (domain.AnalysisResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(logText))
	if err != nil {
		return domain.AnalysisResult{}, domain.NewTransportFailure(err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnalysisResult{}, domain.NewSchemaFailure(errors.New("model returned no choices"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return domain.AnalysisResult{}, domain.NewSchemaFailure(errors.New("model returned an empty body"))
	}

	result, err := domain.ParseAnalysisResult([]byte(content))
	if err != nil {
		return domain.AnalysisResult{}, domain.NewSchemaFailure(err)
	}
	return result, nil
}

func (c *ForensicClient) buildRequest(logText string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemInstruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%s\n\n%s", PromptPrefix, logText),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schemaName,
				Description: "Structured forensic verdict for a network log",
				Schema:      ResultSchema(),
				Strict:      true,
			},
		},
	}
}

// ResultSchema describes the verdict shape the model must return.
func ResultSchema() *jsonschema.Definition {
	levels := make([]string, 0, len(domain.Severities()))
	for _, s := range domain.Severities() {
		levels = append(levels, s.String())
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"threatLevel": {
				Type:        jsonschema.String,
				Enum:        levels,
				Description: "Overall severity of the observed activity",
			},
			"classification": {
				Type:        jsonschema.String,
				Description: "Attack family or 'Benign'",
			},
			"description": {
				Type:        jsonschema.String,
				Description: "Short explanation of the findings",
			},
			"confidence": {
				Type:        jsonschema.Number,
				Description: "Confidence in the verdict between 0 and 1",
			},
			"recommendation": {
				Type:        jsonschema.String,
				Description: "Concrete remediation step",
			},
			"affectedAssets": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "Hosts or services involved",
			},
		},
		Required: []string{
			"threatLevel",
			"classification",
			"description",
			"confidence",
			"recommendation",
			"affectedAssets",
		},
		AdditionalProperties: false,
	}
}
