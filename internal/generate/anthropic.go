package generate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/pkg/anthropic"
)

// Anthropic generates text with Claude.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic wraps a Claude client. maxTokens applies when a request
// does not set its own limit.
func NewAnthropic(client anthropic.Client, modelName string, maxTokens int64, temperature float64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: client, model: modelName, maxTokens: maxTokens, temperature: temperature}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	temp := a.temperature

	mr := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		mr.System = anthropic.CachedSystem(req.System)
	}

	resp, err := a.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, eris.Wrap(err, "generate: anthropic")
	}
	return &Response{
		Text:     resp.Text(),
		Model:    a.model,
		Provider: a.Name(),
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Calls:        1,
		},
	}, nil
}
