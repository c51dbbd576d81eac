// Package search adapts web search providers to a single Searcher interface.
package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/model"
)

// Depth selects how much work a provider spends on a query.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// ParseDepth validates a depth name.
func ParseDepth(s string) (Depth, error) {
	switch d := Depth(strings.ToLower(strings.TrimSpace(s))); d {
	case DepthBasic, DepthAdvanced:
		return d, nil
	}
	return "", eris.Errorf("search: unknown depth %q", s)
}

// Request is one search call.
type Request struct {
	Query      string `json:"query"`
	Depth      Depth  `json:"depth"`
	MaxResults int    `json:"max_results"`
	// Site restricts results to one domain on providers that support it.
	Site       string `json:"site,omitempty"`
}

// Result is one search hit. Title and URL may be empty when the provider
// omits them; callers filter those out.
type Result struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
	Provider string  `json:"provider"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, req Request) ([]Result, error)
	Name() string
}

// Chain tries each searcher in order and returns the first success.
type Chain struct {
	searchers []Searcher
}

// NewChain builds a Chain. Nil entries are skipped.
func NewChain(searchers ...Searcher) *Chain {
	c := &Chain{}
	for _, s := range searchers {
		if s != nil {
			c.searchers = append(c.searchers, s)
		}
	}
	return c
}

// Len reports how many providers the chain holds.
func (c *Chain) Len() int { return len(c.searchers) }

func (c *Chain) Name() string {
	names := make([]string, len(c.searchers))
	for i, s := range c.searchers {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Search(ctx context.Context, req Request) ([]Result, error) {
	if len(c.searchers) == 0 {
		return nil, eris.Wrap(model.ErrCollaboratorUnavailable, "search: no providers configured")
	}

	var lastErr error
	for _, s := range c.searchers {
		results, err := s.Search(ctx, req)
		if err == nil {
			return results, nil
		}
		lastErr = err
		zap.L().Warn("search: provider failed, trying next",
			zap.String("provider", s.Name()),
			zap.String("query", req.Query),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrapf(model.ErrCollaboratorUnavailable, "search: all providers failed: %v", lastErr)
}

func truncate(results []Result, max int) []Result {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}
