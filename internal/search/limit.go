package search

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/interview-prep/internal/cost"
	"github.com/sells-group/interview-prep/internal/resilience"
)

// Limited throttles a Searcher with a token bucket.
type Limited struct {
	next    Searcher
	limiter *rate.Limiter
}

// NewLimited allows rps requests per second with the given burst. A
// non-positive rps disables limiting.
func NewLimited(next Searcher, rps float64, burst int) *Limited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Search(ctx context.Context, req Request) ([]Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "search: %s rate limit wait", l.next.Name())
	}
	return l.next.Search(ctx, req)
}

// Guarded stops calling a provider after repeated failures until the
// breaker's reset timeout elapses.
type Guarded struct {
	next    Searcher
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps next with a circuit breaker.
func NewGuarded(next Searcher, threshold int, reset time.Duration) *Guarded {
	name := next.Name()
	cb := resilience.NewCircuitBreaker(threshold, reset, func(from, to resilience.CircuitState) {
		zap.L().Warn("search: circuit state change",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return &Guarded{next: next, breaker: cb}
}

func (g *Guarded) Name() string { return g.next.Name() }

func (g *Guarded) Search(ctx context.Context, req Request) ([]Result, error) {
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]Result, error) {
		return g.next.Search(ctx, req)
	})
}

// Metered records each successful call in the run's cost ledger, if the
// context carries one.
type Metered struct {
	next Searcher
}

// NewMetered wraps next.
func NewMetered(next Searcher) *Metered { return &Metered{next: next} }

func (m *Metered) Name() string { return m.next.Name() }

func (m *Metered) Search(ctx context.Context, req Request) ([]Result, error) {
	results, err := m.next.Search(ctx, req)
	if err == nil {
		cost.FromContext(ctx).AddSearch(m.next.Name(), req.Depth == DepthAdvanced)
	}
	return results, err
}
