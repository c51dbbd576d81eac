// Package extract turns email text into labeled entity spans.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/model"
)

// Extractor returns typed spans for a piece of email text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]model.EntitySpan, error)
	Name() string
}

// Chain runs extractors in order and concatenates their spans, stopping
// once a candidate name has been found. Earlier extractors win when the
// normalizer picks the first value per label.
type Chain struct {
	extractors []Extractor
}

// NewChain builds a Chain. Nil entries are skipped.
func NewChain(extractors ...Extractor) *Chain {
	c := &Chain{}
	for _, e := range extractors {
		if e != nil {
			c.extractors = append(c.extractors, e)
		}
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		names[i] = e.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Extract(ctx context.Context, text string) ([]model.EntitySpan, error) {
	var (
		spans     []model.EntitySpan
		lastErr   error
		succeeded bool
	)
	for _, e := range c.extractors {
		got, err := e.Extract(ctx, text)
		if err != nil {
			lastErr = err
			zap.L().Warn("extract: extractor failed",
				zap.String("extractor", e.Name()),
				zap.Error(err),
			)
			continue
		}
		succeeded = true
		spans = append(spans, got...)
		if HasLabel(spans, model.LabelCandidate) {
			break
		}
	}
	if !succeeded && lastErr != nil {
		return nil, eris.Wrapf(model.ErrCollaboratorUnavailable, "extract: all extractors failed: %v", lastErr)
	}
	return spans, nil
}

// HasLabel reports whether any span carries the label.
func HasLabel(spans []model.EntitySpan, label string) bool {
	for _, s := range spans {
		if strings.EqualFold(s.Label, label) && strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}
