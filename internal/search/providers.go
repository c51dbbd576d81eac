package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-prep/pkg/jina"
	"github.com/sells-group/interview-prep/pkg/perplexity"
	"github.com/sells-group/interview-prep/pkg/tavily"
)

// Tavily adapts the Tavily search API.
type Tavily struct {
	client tavily.Client
}

// NewTavily wraps a Tavily client.
func NewTavily(client tavily.Client) *Tavily { return &Tavily{client: client} }

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Search(ctx context.Context, req Request) ([]Result, error) {
	resp, err := t.client.Search(ctx, tavily.SearchRequest{
		Query:       req.Query,
		SearchDepth: string(req.Depth),
		MaxResults:  req.MaxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: tavily")
	}
	out := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Result{
			URL:      r.URL,
			Title:    r.Title,
			Content:  r.Content,
			Score:    r.Score,
			Provider: t.Name(),
		})
	}
	return truncate(out, req.MaxResults), nil
}

// Jina adapts the Jina search API. Basic depth skips page bodies.
type Jina struct {
	client jina.Client
}

// NewJina wraps a Jina client.
func NewJina(client jina.Client) *Jina { return &Jina{client: client} }

func (j *Jina) Name() string { return "jina" }

func (j *Jina) Search(ctx context.Context, req Request) ([]Result, error) {
	var opts []jina.SearchOption
	if req.Depth != DepthAdvanced {
		opts = append(opts, jina.WithoutContent())
	}
	if req.Site != "" {
		opts = append(opts, jina.WithSiteFilter(req.Site))
	}
	resp, err := j.client.Search(ctx, req.Query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}
	out := make([]Result, 0, len(resp.Data))
	for _, r := range resp.Data {
		content := r.Content
		if strings.TrimSpace(content) == "" {
			content = r.Description
		}
		out = append(out, Result{
			URL:      r.URL,
			Title:    r.Title,
			Content:  content,
			Provider: j.Name(),
		})
	}
	return truncate(out, req.MaxResults), nil
}

// Perplexity adapts the search results Perplexity attaches to a chat
// completion. The generated answer itself is discarded.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(client perplexity.Client) *Perplexity { return &Perplexity{client: client} }

func (p *Perplexity) Name() string { return "perplexity" }

func (p *Perplexity) Search(ctx context.Context, req Request) ([]Result, error) {
	maxTokens := 256
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "Find web sources for the query. Answer in one sentence."},
			{Role: "user", Content: req.Query},
		},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: perplexity")
	}

	out := make([]Result, 0, len(resp.SearchResults))
	seen := make(map[string]bool, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		seen[r.URL] = true
		out = append(out, Result{
			URL:      r.URL,
			Title:    r.Title,
			Content:  r.Snippet,
			Provider: p.Name(),
		})
	}
	// Bare citations carry no title and are dropped by the acceptance
	// filter downstream; they are still reported so the drop is visible.
	for _, u := range resp.Citations {
		if !seen[u] {
			seen[u] = true
			out = append(out, Result{URL: u, Provider: p.Name()})
		}
	}
	return truncate(out, req.MaxResults), nil
}
