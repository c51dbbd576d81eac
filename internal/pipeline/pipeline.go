// Package pipeline turns one invitation email into a prep guide: entity
// normalization, two research loops, evidence analysis and composition.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/config"
	"github.com/sells-group/interview-prep/internal/cost"
	"github.com/sells-group/interview-prep/internal/extract"
	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/search"
	"github.com/sells-group/interview-prep/internal/store"
)

// Deps are the collaborators a Pipeline drives. Only Store is required.
type Deps struct {
	Store     store.Store
	Cache     cache.Manager
	Extractor extract.Extractor
	Searcher  search.Searcher
	Generator generate.Generator
	Templates Templates
	Costs     *cost.Calculator
}

// Pipeline orchestrates the per-email state machine.
type Pipeline struct {
	store      store.Store
	cache      cache.Manager
	extractor  extract.Extractor
	research   *Researcher
	composer   *Composer
	costs      *cost.Calculator
	threshold  float64
	outputDir  string
	extractTTL time.Duration
}

// New creates a Pipeline from config and collaborators.
func New(cfg *config.Config, d Deps) *Pipeline {
	if d.Templates.Loop1 == nil && d.Templates.Loop2 == nil {
		d.Templates = DefaultTemplates()
	}
	rc := ResearchConfig{
		MaxResults:   cfg.Search.MaxResults,
		Timeout:      time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		Concurrency:  cfg.Pipeline.QueryConcurrency,
		Loop1Depth:   search.Depth(cfg.Pipeline.Loop1Depth),
		Loop2Depth:   search.Depth(cfg.Pipeline.Loop2Depth),
		MaxFollowups: cfg.Pipeline.MaxFollowupQueries,
		BlockedURLs:  cfg.Search.BlockedURLPatterns,
		Templates:    d.Templates,
	}
	cc := ComposerConfig{
		MinSectionChars: cfg.Generation.MinSectionChars,
		Timeout:         time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
		MaxTokens:       cfg.Anthropic.MaxTokens,
	}
	extractor := d.Extractor
	if extractor == nil {
		extractor = extract.NewPattern()
	}
	return &Pipeline{
		store:      d.Store,
		cache:      d.Cache,
		extractor:  extractor,
		research:   NewResearcher(d.Searcher, d.Cache, rc),
		composer:   NewComposer(d.Generator, cc),
		costs:      d.Costs,
		threshold:  cfg.Pipeline.ConfidenceThreshold,
		outputDir:  cfg.Output.Dir,
		extractTTL: time.Duration(cfg.Extraction.TimeoutSecs) * time.Second,
	}
}

// Run processes one email. Collaborator failures degrade the result rather
// than fail it; only store errors are returned. Cancellation is honored
// between stages and leaves the record failed with no document written.
func (p *Pipeline) Run(ctx context.Context, em model.Email) (*model.RunResult, error) {
	start := time.Now()
	ledger := cost.NewLedger(p.costs)
	ctx = cost.WithLedger(ctx, ledger)

	result := &model.RunResult{
		RunID:       uuid.NewString(),
		EmailID:     em.ID,
		ContentHash: ContentHash(em),
	}
	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("email_id", em.ID),
		zap.String("content_hash", result.ContentHash),
	)
	defer func() {
		result.SearchCalls, result.TokenUsage, result.EstimatedCost = ledger.Snapshot()
		result.DurationMs = time.Since(start).Milliseconds()
		log.Info("pipeline: run finished",
			zap.String("state", string(result.State)),
			zap.String("status", string(result.Status)),
			zap.Int64("duration_ms", result.DurationMs),
		)
	}()

	stage := func(name string, fn func()) {
		t := time.Now()
		fn()
		log.Info("pipeline: stage complete", zap.String("stage", name), zap.Int64("duration_ms", time.Since(t).Milliseconds()))
	}

	// Dedup before anything else.
	existing, err := p.store.GetRecordByHash(ctx, result.ContentHash)
	if err != nil {
		return result, eris.Wrap(err, "pipeline: lookup content hash")
	}
	if existing != nil && existing.Status == model.StatusReady {
		if doc, ok := p.cachedDocument(ctx, result.ContentHash); ok {
			log.Info("pipeline: content already processed", zap.Error(model.ErrDuplicateContent))
			return p.replay(result, existing, doc)
		}
		log.Info("pipeline: ready record has no cached document, composing again")
	}

	result.Enter(model.StateCreated)

	// created -> normalized
	var rec *model.InterviewRecord
	if existing != nil && existing.Status == model.StatusReady {
		rec = existing
	} else {
		var normErr error
		stage("normalize", func() { rec, normErr = p.normalize(ctx, em) })
		if normErr != nil && !eris.Is(normErr, model.ErrExtractionIncomplete) {
			return result, normErr
		}
		stored, _, err := p.store.UpsertRecord(ctx, rec)
		if err != nil {
			return result, eris.Wrap(err, "pipeline: upsert record")
		}
		// A replayed record keeps the fields it was first stored with.
		if normErr != nil && stored.CandidateName == "" {
			return p.fail(ctx, result, stored, normErr.Error(), log)
		}
		rec = stored
	}
	result.Record = rec
	if err := p.setStatus(ctx, rec, model.StatusPreparing, ""); err != nil {
		return result, err
	}
	result.Enter(model.StateNormalized)
	if ctx.Err() != nil {
		return p.fail(ctx, result, rec, "cancelled after normalization", log)
	}

	// normalized -> researched_loop1
	if err := p.setStatus(ctx, rec, model.StatusResearching, ""); err != nil {
		return result, err
	}
	var loop1 LoopResult
	stage("research_loop1", func() { loop1 = p.research.ResearchLoop1(ctx, rec) })
	result.Loop1 = loop1.Stats
	evidence := loop1.Evidence
	examined := loop1.Stats.Examined
	result.Enter(model.StateResearchedLoop1)
	if ctx.Err() != nil {
		return p.fail(ctx, result, rec, "cancelled after loop 1", log)
	}

	// researched_loop1 -> analyzed
	analysis := Analyze(evidence, examined, p.threshold)
	result.GapsBefore = analysis.Gaps
	result.Enter(model.StateAnalyzed)
	log.Info("pipeline: evidence analyzed",
		zap.Float64("confidence", analysis.Confidence),
		zap.Int("gaps", len(analysis.Gaps)),
	)
	if ctx.Err() != nil {
		return p.fail(ctx, result, rec, "cancelled after analysis", log)
	}

	// analyzed -> researched_loop2, at most once
	if analysis.ShouldResearchGaps() {
		var loop2 LoopResult
		stage("research_loop2", func() { loop2 = p.research.ResearchLoop2(ctx, rec, analysis.Gaps) })
		result.Loop2 = &loop2.Stats
		evidence = append(evidence, loop2.Evidence...)
		examined += loop2.Stats.Examined
		analysis = Analyze(evidence, examined, p.threshold)
		result.Enter(model.StateResearchedLoop2)
		if ctx.Err() != nil {
			return p.fail(ctx, result, rec, "cancelled after loop 2", log)
		}
	}
	result.GapsAfter = analysis.Gaps
	result.GapsResolved = len(result.GapsBefore) - len(result.GapsAfter)
	result.Confidence = analysis.Confidence

	// -> composed
	var doc *model.Document
	stage("compose", func() { doc = p.composer.Compose(ctx, rec, evidence, analysis) })
	result.Document = doc
	result.Enter(model.StateComposed)
	if doc.Path == model.PathFallback {
		log.Info("pipeline: composed fallback document", zap.String("reason", doc.FallbackReason))
	}
	if ctx.Err() != nil {
		result.Document = nil
		return p.fail(ctx, result, rec, "cancelled after composition", log)
	}

	// composed -> ready
	path, err := WriteArtifact(p.outputDir, rec, doc)
	if err != nil {
		return result, err
	}
	result.OutputPath = path
	if raw, err := json.Marshal(doc); err == nil {
		cache.Put(ctx, p.cache, cache.DocumentKey(rec.ContentHash), raw)
	}
	if err := p.setStatus(ctx, rec, model.StatusReady, ""); err != nil {
		return result, err
	}
	result.Status = model.StatusReady
	result.Enter(model.StateReady)
	return result, nil
}

func (p *Pipeline) normalize(ctx context.Context, em model.Email) (*model.InterviewRecord, error) {
	callCtx := context.WithoutCancel(ctx)
	if p.extractTTL > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, p.extractTTL)
		defer cancel()
	}
	spans, err := p.extractor.Extract(callCtx, em.Text())
	if err != nil {
		zap.L().Warn("pipeline: entity extraction failed", zap.String("email_id", em.ID), zap.Error(err))
	}
	return Normalize(em, spans)
}

// setStatus moves the record forward and mirrors the change locally.
func (p *Pipeline) setStatus(ctx context.Context, rec *model.InterviewRecord, status model.RecordStatus, reason string) error {
	if rec.Status == status && reason == "" {
		return nil
	}
	if err := p.store.UpdateRecordStatus(context.WithoutCancel(ctx), rec.ContentHash, status, reason); err != nil {
		return eris.Wrapf(err, "pipeline: set status %s", status)
	}
	rec.Status = status
	rec.FailureReason = reason
	return nil
}

// fail records the failure with a context that outlives cancellation.
func (p *Pipeline) fail(ctx context.Context, result *model.RunResult, rec *model.InterviewRecord, reason string, log *zap.Logger) (*model.RunResult, error) {
	log.Warn("pipeline: run failed", zap.String("reason", reason))
	result.Record = rec
	result.Status = model.StatusFailed
	result.Reason = reason
	result.Enter(model.StateFailed)
	if rec == nil {
		return result, nil
	}
	if err := p.setStatus(ctx, rec, model.StatusFailed, reason); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Pipeline) cachedDocument(ctx context.Context, hash string) (*model.Document, bool) {
	raw, ok := cache.Get(ctx, p.cache, cache.DocumentKey(hash))
	if !ok {
		return nil, false
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		zap.L().Warn("pipeline: ignoring undecodable cached document", zap.String("content_hash", hash), zap.Error(err))
		return nil, false
	}
	return &doc, true
}

// replay serves a processed email from the store and document cache. The
// artifact is rewritten from the cached document so it matches byte for byte.
func (p *Pipeline) replay(result *model.RunResult, rec *model.InterviewRecord, doc *model.Document) (*model.RunResult, error) {
	path, err := WriteArtifact(p.outputDir, rec, doc)
	if err != nil {
		return result, err
	}
	result.Record = rec
	result.Document = doc
	result.OutputPath = path
	result.Deduplicated = true
	result.Status = model.StatusReady
	result.Enter(model.StateReady)
	return result, nil
}
