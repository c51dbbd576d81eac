package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/model"
)

const llmSystem = `You extract scheduling facts from interview invitation emails.
Return only a JSON array of objects {"label": "...", "text": "..."}.
Allowed labels: CANDIDATE, COMPANY, ROLE, INTERVIEWER, DATE, TIME, DURATION, LOCATION, FORMAT, LINK.
CANDIDATE is the person being invited. INTERVIEWER is a person who will conduct the interview, never a team.
Copy text exactly as written in the email. Omit labels that are not present. Do not guess.`

var knownLabels = map[string]bool{
	model.LabelCandidate:   true,
	model.LabelCompany:     true,
	model.LabelRole:        true,
	model.LabelInterviewer: true,
	model.LabelDate:        true,
	model.LabelTime:        true,
	model.LabelDuration:    true,
	model.LabelLocation:    true,
	model.LabelFormat:      true,
	model.LabelLink:        true,
}

// LLM asks a text generator for spans as JSON.
type LLM struct {
	gen generate.Generator
}

// NewLLM wraps a generator.
func NewLLM(gen generate.Generator) *LLM { return &LLM{gen: gen} }

func (l *LLM) Name() string { return "llm" }

func (l *LLM) Extract(ctx context.Context, text string) ([]model.EntitySpan, error) {
	resp, err := l.gen.Generate(ctx, generate.Request{
		System:    llmSystem,
		Prompt:    "Email:\n" + text,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: llm generate")
	}
	return parseSpans(resp.Text)
}

func parseSpans(raw string) ([]model.EntitySpan, error) {
	var items []model.EntitySpan
	if err := json.Unmarshal([]byte(generate.StripFences(raw)), &items); err != nil {
		return nil, eris.Wrap(err, "extract: llm parse response")
	}

	out := make([]model.EntitySpan, 0, len(items))
	for _, it := range items {
		label := strings.ToUpper(strings.TrimSpace(it.Label))
		txt := strings.TrimSpace(it.Text)
		if !knownLabels[label] || txt == "" {
			continue
		}
		out = append(out, model.EntitySpan{Label: label, Text: txt, Score: it.Score})
	}
	return out, nil
}
