// Package llm supplies the optional ML prediction stage of the Classifier
// Cascade (spec §4.8, steps 2/3/5). Grounded on the teacher's
// llm.ProviderFactory (provider.go/claude_service.go): same
// Gemini/Claude dual-provider split and API-key resolution via
// interfaces.KeyValueStorage, trimmed from general chat completion down to
// one structured classification call.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// Prediction is the ML stage's verdict on one cookie, used by the cascade's
// ML_High/IAB_ML_Blend/Rules_ML_Agree/ML_Low branches (spec §4.8).
type Prediction struct {
	Category        string             `json:"category"`
	Confidence      float64            `json:"confidence"`
	Probabilities   map[string]float64 `json:"probabilities,omitempty"`
}

// Predictor classifies a cookie by name/domain/duration using a configured
// LLM provider. A nil Predictor means "no ML classifier available" (spec
// §4.8 step 2 is then always skipped), which Cascade treats as a normal
// configuration, not an error.
type Predictor interface {
	Predict(ctx context.Context, cookieName, domain string, durationDays float64) (*Prediction, error)
}

// Provider selects which backend a Predictor calls.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
)

// Config configures a Predictor backend.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
}

const classifyPrompt = `Classify the following browser cookie into exactly one of these categories: Necessary, Functional, Analytics, Advertising, Unknown.
Cookie name: %q
Cookie domain: %q
Approximate lifetime in days: %.1f

Respond with strict JSON only, no prose: {"category": "...", "confidence": 0.0-1.0, "probabilities": {"Necessary": 0.0, "Functional": 0.0, "Analytics": 0.0, "Advertising": 0.0, "Unknown": 0.0}}`

// classificationSchema constrains Gemini's structured output to the shape
// Prediction expects.
var classificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category":   {Type: genai.TypeString, Enum: []string{"Necessary", "Functional", "Analytics", "Advertising", "Unknown"}},
		"confidence": {Type: genai.TypeNumber},
		"probabilities": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"Necessary":   {Type: genai.TypeNumber},
				"Functional":  {Type: genai.TypeNumber},
				"Analytics":   {Type: genai.TypeNumber},
				"Advertising": {Type: genai.TypeNumber},
				"Unknown":     {Type: genai.TypeNumber},
			},
		},
	},
	Required: []string{"category", "confidence"},
}

// NewPredictor constructs a Predictor for cfg.Provider. Returns an error for
// an unrecognised provider name.
func NewPredictor(cfg Config, logger arbor.ILogger) (Predictor, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return newGeminiPredictor(cfg, logger)
	case ProviderClaude:
		return newClaudePredictor(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ML classifier provider: %q", cfg.Provider)
	}
}

type geminiPredictor struct {
	client *genai.Client
	model  string
	logger arbor.ILogger
}

func newGeminiPredictor(cfg Config, logger arbor.ILogger) (*geminiPredictor, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiPredictor{client: client, model: model, logger: logger}, nil
}

func (p *geminiPredictor) Predict(ctx context.Context, cookieName, domain string, durationDays float64) (*Prediction, error) {
	prompt := fmt.Sprintf(classifyPrompt, cookieName, domain, durationDays)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   classificationSchema,
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini classification call: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini classification response")
	}
	return parsePrediction(text)
}

type claudePredictor struct {
	client anthropic.Client
	model  string
	logger arbor.ILogger
}

func newClaudePredictor(cfg Config, logger arbor.ILogger) (*claudePredictor, error) {
	model := cfg.Model
	if model == "" {
		model = "claude-haiku-4-5"
	}
	return &claudePredictor{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
		logger: logger,
	}, nil
}

func (p *claudePredictor) Predict(ctx context.Context, cookieName, domain string, durationDays float64) (*Prediction, error) {
	prompt := fmt.Sprintf(classifyPrompt, cookieName, domain, durationDays)
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude classification call: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty claude classification response")
	}
	return parsePrediction(text.String())
}

func parsePrediction(raw string) (*Prediction, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var pred Prediction
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &pred); err != nil {
		return nil, fmt.Errorf("parse classification response: %w", err)
	}
	return &pred, nil
}
