// Package generate adapts text generation services to a single Generator
// interface used by the document composer and the LLM entity extractor.
package generate

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cost"
	"github.com/sells-group/interview-prep/internal/model"
)

// Request is one prompt.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// Response is the generated text plus accounting data.
type Response struct {
	Text     string
	Model    string
	Provider string
	Usage    model.TokenUsage
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Chain tries each generator in order. A response with only whitespace
// counts as a failure so the next provider gets a chance.
type Chain struct {
	gens []Generator
}

// NewChain builds a Chain. Nil entries are skipped.
func NewChain(gens ...Generator) *Chain {
	c := &Chain{}
	for _, g := range gens {
		if g != nil {
			c.gens = append(c.gens, g)
		}
	}
	return c
}

// Len reports how many providers the chain holds.
func (c *Chain) Len() int { return len(c.gens) }

func (c *Chain) Name() string {
	names := make([]string, len(c.gens))
	for i, g := range c.gens {
		names[i] = g.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(c.gens) == 0 {
		return nil, eris.Wrap(model.ErrCollaboratorUnavailable, "generate: no providers configured")
	}

	var lastErr error
	for _, g := range c.gens {
		resp, err := g.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = eris.Errorf("generate: %s returned empty text", g.Name())
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err
		zap.L().Warn("generate: provider failed, trying next",
			zap.String("provider", g.Name()),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrapf(model.ErrCollaboratorUnavailable, "generate: all providers failed: %v", lastErr)
}

// Metered records each successful generation in the run's cost ledger.
// Wrapping a Chain records the provider that actually answered.
type Metered struct {
	next Generator
}

// NewMetered wraps next.
func NewMetered(next Generator) *Metered { return &Metered{next: next} }

func (m *Metered) Name() string { return m.next.Name() }

func (m *Metered) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.next.Generate(ctx, req)
	if err == nil {
		cost.FromContext(ctx).AddGeneration(resp.Provider, resp.Model, resp.Usage)
	}
	return resp, err
}

// StripFences removes a surrounding markdown code fence, which models add
// to JSON answers even when told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
