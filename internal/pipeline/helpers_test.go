package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/config"
	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/search"
	"github.com/sells-group/interview-prep/internal/store"
)

// fakeSearcher answers from a fixed table and records every request.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]search.Result
	fail    map[string]error
	calls   []search.Request
	onCall  func()
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{results: map[string][]search.Result{}, fail: map[string]error{}}
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, req search.Request) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.onCall != nil {
		f.onCall()
	}
	if err := f.fail[req.Query]; err != nil {
		return nil, err
	}
	return f.results[req.Query], nil
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Query
	}
	return out
}

func (f *fakeSearcher) callsWithDepth(d search.Depth) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Depth == d {
			n++
		}
	}
	return n
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Response, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*generate.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

// staticExtractor returns the same spans for every email.
type staticExtractor struct {
	spans []model.EntitySpan
}

func (s staticExtractor) Name() string { return "static" }

func (s staticExtractor) Extract(context.Context, string) ([]model.EntitySpan, error) {
	return s.spans, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Output: config.OutputConfig{Dir: t.TempDir()},
		Search: config.SearchConfig{
			MaxResults:         5,
			TimeoutSecs:        5,
			BlockedURLPatterns: []string{"/login"},
		},
		Generation: config.GenerationConfig{MinSectionChars: 20, TimeoutSecs: 5},
		Extraction: config.ExtractionConfig{TimeoutSecs: 5},
		Pipeline: config.PipelineConfig{
			ConfidenceThreshold: 0.7,
			MaxFollowupQueries:  3,
			Loop1Depth:          "basic",
			Loop2Depth:          "advanced",
			QueryConcurrency:    3,
		},
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "interviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// jamieEmail is an invitation with no interviewer named.
func jamieEmail() model.Email {
	return model.Email{
		ID:      "msg-1",
		Subject: "Interview Invitation at Launchpad AI",
		Body:    "Hi Jamie,\n\nWe would like to invite you to interview at Launchpad AI on August 25, 2025.\n\nBest,\nLaunchpad AI Recruiting Team",
	}
}

func jamieRecord() *model.InterviewRecord {
	return &model.InterviewRecord{
		CandidateName: "Jamie",
		CompanyName:   "Launchpad AI",
		InterviewDate: "August 25, 2025",
		ContentHash:   "0123456789abcdef",
	}
}

func fullRecord() *model.InterviewRecord {
	return &model.InterviewRecord{
		CandidateName: "Jamie Park",
		CompanyName:   "Launchpad AI",
		Role:          "Backend Engineer",
		Interviewer:   "Priya Shah",
		InterviewDate: "March 12, 2025",
		InterviewTime: "2:00 PM PT",
		Duration:      "45 minutes",
		Format:        "Zoom",
		Location:      "Iribe Center, Room 1105",
		ContentHash:   "fedcba9876543210",
	}
}

func result(url, title, content string) search.Result {
	return search.Result{URL: url, Title: title, Content: content, Provider: "fake"}
}
