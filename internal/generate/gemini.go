package generate

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/interview-prep/internal/model"
)

// ContentGenerator is the part of *genai.GenerativeModel the adapter uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini generates text with a Google Gemini model. The model is shared
// across goroutines, so per-request settings never touch it; the system
// prompt travels as the first part instead.
type Gemini struct {
	model ContentGenerator
	name  string
}

// NewGemini wraps an already configured model.
func NewGemini(m ContentGenerator, modelName string) *Gemini {
	return &Gemini{model: m, name: modelName}
}

// NewGeminiClient dials the Gemini API and returns the adapter plus the
// function that releases the client.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, temperature float64, maxTokens int32) (*Gemini, func() error, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, eris.Wrap(err, "generate: gemini client")
	}
	m := client.GenerativeModel(modelName)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if maxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr(maxTokens)
	}
	return NewGemini(m, modelName), client.Close, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	var parts []genai.Part
	if req.System != "" {
		parts = append(parts, genai.Text(req.System))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, eris.Wrap(err, "generate: gemini")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("generate: gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	out := &Response{
		Text:     b.String(),
		Model:    g.name,
		Provider: g.Name(),
		Usage:    model.TokenUsage{Calls: 1},
	}
	if md := resp.UsageMetadata; md != nil {
		out.Usage.InputTokens = int64(md.PromptTokenCount)
		out.Usage.OutputTokens = int64(md.CandidatesTokenCount)
	}
	return out, nil
}
