package cost

import (
	"context"
	"sync"

	"github.com/sells-group/interview-prep/internal/model"
)

// Ledger accumulates the spend of one pipeline run. It is safe for
// concurrent use by the run's query fan-out.
type Ledger struct {
	calc *Calculator

	mu       sync.Mutex
	searches int
	usage    model.TokenUsage
	total    float64
}

// NewLedger returns an empty ledger. A nil calculator records counts only.
func NewLedger(calc *Calculator) *Ledger {
	return &Ledger{calc: calc}
}

// AddSearch records one completed search call.
func (l *Ledger) AddSearch(provider string, advanced bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searches++
	if l.calc != nil {
		l.total += l.calc.Search(provider, advanced)
	}
}

// AddGeneration records one completed generation call.
func (l *Ledger) AddGeneration(provider, modelName string, u model.TokenUsage) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage.Add(u)
	if l.calc != nil {
		l.total += l.calc.Tokens(provider, modelName, u.InputTokens, u.OutputTokens)
	}
}

// Snapshot returns the totals so far.
func (l *Ledger) Snapshot() (searches int, usage model.TokenUsage, total float64) {
	if l == nil {
		return 0, model.TokenUsage{}, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.searches, l.usage, l.total
}

type ledgerKey struct{}

// WithLedger attaches l to ctx so collaborator wrappers can record spend.
func WithLedger(ctx context.Context, l *Ledger) context.Context {
	return context.WithValue(ctx, ledgerKey{}, l)
}

// FromContext returns the ledger attached to ctx, or nil.
func FromContext(ctx context.Context) *Ledger {
	l, _ := ctx.Value(ledgerKey{}).(*Ledger)
	return l
}
