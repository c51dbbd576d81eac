package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/cost"
	"github.com/sells-group/interview-prep/internal/extract"
	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/pipeline"
	"github.com/sells-group/interview-prep/internal/search"
	"github.com/sells-group/interview-prep/internal/store"
	anthropicpkg "github.com/sells-group/interview-prep/pkg/anthropic"
	"github.com/sells-group/interview-prep/pkg/jina"
	"github.com/sells-group/interview-prep/pkg/perplexity"
	"github.com/sells-group/interview-prep/pkg/tavily"
)

// pipelineEnv holds the store, cache and pipeline needed by the run and
// serve commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    cache.Manager
	Pipeline *pipeline.Pipeline
	closers  []func()
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		pe.closers[i]()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and cache, wires
// every configured collaborator and builds the Pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	c, closeCache, err := initCache(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = c
	env.closers = append(env.closers, closeCache)

	templates, err := pipeline.LoadTemplates(cfg.Pipeline.TemplatesPath)
	if err != nil {
		env.Close()
		return nil, err
	}

	gen, closeGen, err := buildGenerator(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeGen)

	env.Pipeline = pipeline.New(cfg, pipeline.Deps{
		Store:     st,
		Cache:     c,
		Extractor: buildExtractor(cfg.Extraction.Mode, gen),
		Searcher:  buildSearcher(),
		Generator: gen,
		Templates: templates,
		Costs:     cost.NewCalculator(cost.FromConfig(cfg.Pricing)),
	})
	return env, nil
}

// buildSearcher chains the configured providers that have credentials.
// Each provider is rate limited, guarded by a circuit breaker and metered.
func buildSearcher() search.Searcher {
	reset := time.Duration(cfg.Search.BreakerResetSecs) * time.Second
	wrap := func(s search.Searcher) search.Searcher {
		limited := search.NewLimited(s, cfg.Search.RequestsPerSecond, cfg.Search.Burst)
		return search.NewMetered(search.NewGuarded(limited, cfg.Search.BreakerThreshold, reset))
	}

	var providers []search.Searcher
	for _, name := range cfg.Search.Providers {
		switch name {
		case "tavily":
			if cfg.Tavily.Key == "" {
				continue
			}
			providers = append(providers, wrap(search.NewTavily(
				tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL)),
			)))
		case "jina":
			if cfg.Jina.Key == "" {
				continue
			}
			providers = append(providers, wrap(search.NewJina(
				jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL)),
			)))
		case "perplexity":
			if cfg.Perplexity.Key == "" {
				continue
			}
			providers = append(providers, wrap(search.NewPerplexity(perplexityClient())))
		default:
			zap.L().Warn("unknown search provider, skipping", zap.String("provider", name))
		}
	}

	chain := search.NewChain(providers...)
	if chain.Len() == 0 {
		zap.L().Warn("no search provider has credentials, research will find nothing")
	} else {
		zap.L().Info("search providers enabled", zap.String("chain", chain.Name()))
	}
	return chain
}

// buildGenerator chains the configured generation providers. It returns a
// nil Generator when none has credentials, so every document uses the
// deterministic template.
func buildGenerator(ctx context.Context) (generate.Generator, func(), error) {
	var gens []generate.Generator
	var closers []func() error

	for _, name := range cfg.Generation.Providers {
		switch name {
		case "anthropic":
			if cfg.Anthropic.Key == "" {
				continue
			}
			gens = append(gens, generate.NewMetered(generate.NewAnthropic(
				anthropicpkg.NewClient(cfg.Anthropic.Key),
				cfg.Anthropic.Model,
				cfg.Anthropic.MaxTokens,
				cfg.Generation.Temperature,
			)))
		case "gemini":
			if cfg.Gemini.Key == "" {
				continue
			}
			g, closeFn, err := generate.NewGeminiClient(ctx, cfg.Gemini.Key, cfg.Gemini.Model,
				cfg.Generation.Temperature, int32(cfg.Anthropic.MaxTokens))
			if err != nil {
				for _, c := range closers {
					_ = c()
				}
				return nil, func() {}, eris.Wrap(err, "init gemini")
			}
			closers = append(closers, closeFn)
			gens = append(gens, generate.NewMetered(g))
		case "perplexity":
			if cfg.Perplexity.Key == "" {
				continue
			}
			gens = append(gens, generate.NewMetered(generate.NewPerplexity(
				perplexityClient(), cfg.Perplexity.Model, cfg.Generation.Temperature,
			)))
		default:
			zap.L().Warn("unknown generation provider, skipping", zap.String("provider", name))
		}
	}

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	chain := generate.NewChain(gens...)
	if chain.Len() == 0 {
		zap.L().Warn("no generation provider has credentials, documents will use the fallback template")
		return nil, closeAll, nil
	}
	zap.L().Info("generation providers enabled", zap.String("chain", chain.Name()))
	return chain, closeAll, nil
}

// buildExtractor picks the extractor for mode. LLM extraction needs a
// generator; without one the pattern extractor is used alone.
func buildExtractor(mode string, gen generate.Generator) extract.Extractor {
	switch mode {
	case "llm":
		if gen == nil {
			zap.L().Warn("extraction.mode is llm but no generator is configured, using pattern extraction")
			return extract.NewPattern()
		}
		return extract.NewLLM(gen)
	case "chain":
		if gen == nil {
			return extract.NewPattern()
		}
		return extract.NewChain(extract.NewPattern(), extract.NewLLM(gen))
	default:
		return extract.NewPattern()
	}
}

func perplexityClient() perplexity.Client {
	return perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
	)
}
