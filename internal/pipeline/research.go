package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/search"
)

// ResearchConfig bounds the research loops.
type ResearchConfig struct {
	MaxResults   int
	Timeout      time.Duration
	Concurrency  int
	Loop1Depth   search.Depth
	Loop2Depth   search.Depth
	MaxFollowups int
	BlockedURLs  []string
	Templates    Templates
}

// Researcher runs both research loops against one searcher. A nil
// searcher yields zero evidence; a nil cache disables caching.
type Researcher struct {
	searcher search.Searcher
	cache    cache.Manager
	cfg      ResearchConfig
}

// NewResearcher builds a Researcher.
func NewResearcher(s search.Searcher, c cache.Manager, cfg ResearchConfig) *Researcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Loop1Depth == "" {
		cfg.Loop1Depth = search.DepthBasic
	}
	if cfg.Loop2Depth == "" {
		cfg.Loop2Depth = search.DepthAdvanced
	}
	if cfg.Templates.Loop1 == nil && cfg.Templates.Loop2 == nil {
		cfg.Templates = DefaultTemplates()
	}
	return &Researcher{searcher: s, cache: c, cfg: cfg}
}

// plannedQuery is one search the loop will issue.
type plannedQuery struct {
	text  string
	topic model.GapCategory
	gap   *model.GapCategory
	site  string
}

// LoopResult is the evidence and accounting from one research pass.
type LoopResult struct {
	Evidence []model.EvidenceItem
	Stats    model.LoopStats
	Queries  []string
}

// ResearchLoop1 issues one broad query per category whose template can be
// rendered from the record.
func (r *Researcher) ResearchLoop1(ctx context.Context, rec *model.InterviewRecord) LoopResult {
	vars := rec.Placeholders()
	var planned []plannedQuery
	skipped := 0
	for _, cat := range model.GapPriority {
		q, ok := RenderFirst(r.cfg.Templates.Loop1[cat], vars)
		if !ok {
			skipped++
			continue
		}
		planned = append(planned, plannedQuery{text: q, topic: cat})
	}
	res := r.run(ctx, planned, r.cfg.Loop1Depth, 1)
	res.Stats.Skipped = skipped
	return res
}

// run executes the planned queries concurrently and assembles evidence in
// plan order. A failed query contributes nothing.
func (r *Researcher) run(ctx context.Context, planned []plannedQuery, depth search.Depth, loop int) LoopResult {
	type outcome struct {
		results []search.Result
		failed  bool
		cached  bool
	}
	outcomes := make([]outcome, len(planned))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, pq := range planned {
		g.Go(func() error {
			results, cached, err := r.search(ctx, pq, depth)
			if err != nil {
				zap.L().Warn("pipeline: search failed, continuing without it",
					zap.Int("loop", loop),
					zap.String("query", pq.text),
					zap.Error(err),
				)
				outcomes[i] = outcome{failed: true}
				return nil
			}
			outcomes[i] = outcome{results: results, cached: cached}
			return nil
		})
	}
	_ = g.Wait()

	res := LoopResult{Stats: model.LoopStats{Queries: len(planned)}}
	for i, pq := range planned {
		res.Queries = append(res.Queries, pq.text)
		o := outcomes[i]
		if o.failed {
			res.Stats.Failed++
			continue
		}
		if o.cached {
			res.Stats.CacheHits++
		}
		dropped := 0
		for _, sr := range o.results {
			res.Stats.Examined++
			if !r.accept(sr) {
				dropped++
				continue
			}
			res.Evidence = append(res.Evidence, model.EvidenceItem{
				SourceURL:      strings.TrimSpace(sr.URL),
				Title:          strings.TrimSpace(sr.Title),
				ContentExcerpt: excerpt(sr.Content, 600),
				Query:          pq.text,
				Topic:          pq.topic,
				Gap:            pq.gap,
				Loop:           loop,
			})
		}
		if dropped > 0 {
			res.Stats.Dropped += dropped
			zap.L().Info("pipeline: results dropped by acceptance filter",
				zap.Int("loop", loop),
				zap.String("query", pq.text),
				zap.Int("dropped", dropped),
				zap.Error(model.ErrPartialEvidence),
			)
		}
	}
	res.Stats.Accepted = len(res.Evidence)
	return res
}

// search consults the cache, then the searcher. The call is detached from
// ctx cancellation and bounded by its own timeout.
func (r *Researcher) search(ctx context.Context, pq plannedQuery, depth search.Depth) ([]search.Result, bool, error) {
	keyQuery := pq.text
	if pq.site != "" {
		keyQuery = "site:" + pq.site + " " + pq.text
	}
	key := cache.ResearchKey(keyQuery, string(depth), r.cfg.MaxResults)
	if raw, ok := cache.Get(ctx, r.cache, key); ok {
		var results []search.Result
		if err := json.Unmarshal(raw, &results); err == nil {
			return results, true, nil
		}
		zap.L().Warn("pipeline: ignoring undecodable research cache entry", zap.String("key", key.String()))
	}

	if r.searcher == nil {
		return nil, false, eris.Wrap(model.ErrCollaboratorUnavailable, "pipeline: no searcher configured")
	}

	callCtx := context.WithoutCancel(ctx)
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.cfg.Timeout)
		defer cancel()
	}

	results, err := r.searcher.Search(callCtx, search.Request{Query: pq.text, Depth: depth, MaxResults: r.cfg.MaxResults, Site: pq.site})
	if err != nil {
		return nil, false, err
	}
	if raw, err := json.Marshal(results); err == nil {
		cache.Put(ctx, r.cache, key, raw)
	}
	return results, false, nil
}

func (r *Researcher) accept(sr search.Result) bool {
	if !model.Acceptable(sr.URL, sr.Title) {
		return false
	}
	u := strings.ToLower(sr.URL)
	for _, b := range r.cfg.BlockedURLs {
		if b != "" && strings.Contains(u, strings.ToLower(b)) {
			return false
		}
	}
	return true
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
