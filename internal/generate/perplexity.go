package generate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/pkg/perplexity"
)

// Perplexity generates text with a Perplexity chat model.
type Perplexity struct {
	client      perplexity.Client
	model       string
	temperature float64
}

// NewPerplexity wraps a Perplexity client. modelName is reported for cost
// accounting; the client decides which model is called.
func NewPerplexity(client perplexity.Client, modelName string, temperature float64) *Perplexity {
	return &Perplexity{client: client, model: modelName, temperature: temperature}
}

func (p *Perplexity) Name() string { return "perplexity" }

func (p *Perplexity) Generate(ctx context.Context, req Request) (*Response, error) {
	var msgs []perplexity.Message
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	temp := p.temperature
	cr := perplexity.ChatCompletionRequest{Messages: msgs, Temperature: &temp}
	if req.MaxTokens > 0 {
		mt := int(req.MaxTokens)
		cr.MaxTokens = &mt
	}

	resp, err := p.client.ChatCompletion(ctx, cr)
	if err != nil {
		return nil, eris.Wrap(err, "generate: perplexity")
	}
	return &Response{
		Text:     resp.Content(),
		Model:    p.model,
		Provider: p.Name(),
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
			Calls:        1,
		},
	}, nil
}
