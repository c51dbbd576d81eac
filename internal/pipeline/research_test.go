package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/search"
)

func newTestResearcher(s search.Searcher, c cache.Manager) *Researcher {
	return NewResearcher(s, c, ResearchConfig{
		MaxResults:   5,
		Timeout:      time.Second,
		Concurrency:  3,
		MaxFollowups: 3,
		BlockedURLs:  []string{"/login"},
	})
}

func TestResearchLoop1_SkipsUnrenderableCategories(t *testing.T) {
	fs := newFakeSearcher()
	r := newTestResearcher(fs, nil)

	res := r.ResearchLoop1(context.Background(), jamieRecord())

	assert.Equal(t, []string{
		"Launchpad AI company background",
		"Jamie Launchpad AI",
		"Launchpad AI interview process",
	}, res.Queries)
	assert.Equal(t, 3, res.Stats.Queries)
	assert.Equal(t, 2, res.Stats.Skipped, "no interviewer and no role")
	assert.Equal(t, 3, fs.callsWithDepth(search.DepthBasic))
	assert.Empty(t, res.Evidence)
}

func TestResearchLoop1_AcceptanceFilterAndOrder(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["Launchpad AI company background"] = []search.Result{
		result("https://launchpad.example/about", "About Launchpad AI", "Launchpad AI builds developer tools."),
		result("https://launchpad.example/x", "", "no title"),
		result("https://jobs.example/login", "Sign in", "blocked"),
	}
	fs.results["Jamie Launchpad AI"] = []search.Result{
		result("https://news.example/jamie", "Jamie joins hackathon", "excerpt"),
	}
	r := newTestResearcher(fs, nil)

	res := r.ResearchLoop1(context.Background(), jamieRecord())

	require.Len(t, res.Evidence, 2)
	assert.Equal(t, "https://launchpad.example/about", res.Evidence[0].SourceURL)
	assert.Equal(t, model.GapCompanyContext, res.Evidence[0].Topic)
	assert.Equal(t, "Launchpad AI company background", res.Evidence[0].Query)
	assert.Equal(t, 1, res.Evidence[0].Loop)
	assert.Nil(t, res.Evidence[0].Gap)
	assert.Equal(t, model.GapCandidateContext, res.Evidence[1].Topic)

	assert.Equal(t, 4, res.Stats.Examined)
	assert.Equal(t, 2, res.Stats.Accepted)
	assert.Equal(t, 2, res.Stats.Dropped)
}

func TestResearchLoop1_FailedQueryContributesNothing(t *testing.T) {
	fs := newFakeSearcher()
	fs.fail["Launchpad AI company background"] = errors.New("503")
	fs.results["Jamie Launchpad AI"] = []search.Result{result("https://a.example", "A", "a")}
	r := newTestResearcher(fs, nil)

	res := r.ResearchLoop1(context.Background(), jamieRecord())

	assert.Equal(t, 1, res.Stats.Failed)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "https://a.example", res.Evidence[0].SourceURL)
}

func TestResearchLoop1_NoSearcher(t *testing.T) {
	r := newTestResearcher(nil, nil)
	res := r.ResearchLoop1(context.Background(), jamieRecord())
	assert.Equal(t, 3, res.Stats.Failed)
	assert.Empty(t, res.Evidence)
}

func TestResearchLoop1_UsesCache(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["Launchpad AI company background"] = []search.Result{result("https://a.example", "A", "a")}
	c := cache.NewMemory(time.Hour)
	r := newTestResearcher(fs, c)

	first := r.ResearchLoop1(context.Background(), jamieRecord())
	require.Len(t, fs.queries(), 3)

	second := r.ResearchLoop1(context.Background(), jamieRecord())
	assert.Len(t, fs.queries(), 3, "second pass is served from cache")
	assert.Equal(t, 3, second.Stats.CacheHits)
	assert.Equal(t, first.Evidence, second.Evidence)
}

func TestResearchLoop1_ExcerptIsBounded(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	fs := newFakeSearcher()
	fs.results["Launchpad AI company background"] = []search.Result{result("https://a.example", "A", string(long))}

	res := newTestResearcher(fs, nil).ResearchLoop1(context.Background(), jamieRecord())
	require.Len(t, res.Evidence, 1)
	assert.LessOrEqual(t, len(res.Evidence[0].ContentExcerpt), 603)
}

func TestResearchLoop2_BoundedAndOrdered(t *testing.T) {
	fs := newFakeSearcher()
	fs.results["Launchpad AI interviewer linkedin"] = []search.Result{
		result("https://linkedin.example/in/someone", "Engineering Manager at Launchpad AI", "profile"),
	}
	r := newTestResearcher(fs, nil)

	res := r.ResearchLoop2(context.Background(), jamieRecord(), model.GapPriority)

	assert.Equal(t, []string{
		"Launchpad AI interviewer linkedin",
		"Launchpad AI mission values culture",
		"Launchpad AI interview process candidate experience",
	}, res.Queries)
	assert.Equal(t, 3, fs.callsWithDepth(search.DepthAdvanced))
	assert.Zero(t, fs.callsWithDepth(search.DepthBasic))

	require.Len(t, res.Evidence, 1)
	ev := res.Evidence[0]
	assert.Equal(t, 2, ev.Loop)
	require.NotNil(t, ev.Gap)
	assert.Equal(t, model.GapInterviewerBackground, *ev.Gap)
	assert.Equal(t, model.GapInterviewerBackground, ev.Topic)
}

func TestResearchLoop2_InterviewerQueriesAreSiteScoped(t *testing.T) {
	fs := newFakeSearcher()
	r := newTestResearcher(fs, nil)

	r.ResearchLoop2(context.Background(), jamieRecord(), model.GapPriority)

	sites := map[string]string{}
	for _, c := range fs.calls {
		sites[c.Query] = c.Site
	}
	assert.Equal(t, "linkedin.com", sites["Launchpad AI interviewer linkedin"])
	assert.Empty(t, sites["Launchpad AI mission values culture"])
	assert.Empty(t, sites["Launchpad AI interview process candidate experience"])
}

func TestResearchLoop1_NeverSiteScoped(t *testing.T) {
	fs := newFakeSearcher()
	newTestResearcher(fs, nil).ResearchLoop1(context.Background(), fullRecord())

	require.NotEmpty(t, fs.calls)
	for _, c := range fs.calls {
		assert.Empty(t, c.Site, c.Query)
	}
}

func TestResearchLoop2_BudgetRespected(t *testing.T) {
	for _, budget := range []int{0, 1, 2, 5} {
		fs := newFakeSearcher()
		r := NewResearcher(fs, nil, ResearchConfig{MaxFollowups: budget})
		r.ResearchLoop2(context.Background(), fullRecord(), model.GapPriority)
		want := budget
		if want > len(model.GapPriority) {
			want = len(model.GapPriority)
		}
		assert.Len(t, fs.queries(), want, "budget %d", budget)
	}
}

func TestResearchLoop2_NoGaps(t *testing.T) {
	fs := newFakeSearcher()
	res := newTestResearcher(fs, nil).ResearchLoop2(context.Background(), fullRecord(), nil)
	assert.Empty(t, fs.queries())
	assert.Zero(t, res.Stats.Queries)
}

func TestAnalyze(t *testing.T) {
	ev := []model.EvidenceItem{
		{SourceURL: "a", Title: "A", Topic: model.GapCompanyContext},
		{SourceURL: "b", Title: "B", Topic: model.GapCompanyContext},
		{SourceURL: "c", Title: "C", Topic: model.GapLogistics},
	}
	a := Analyze(ev, 4, 0.7)

	assert.InDelta(t, 0.75, a.Confidence, 1e-9)
	assert.Equal(t, 2, a.Coverage[model.GapCompanyContext])
	assert.Equal(t, []model.GapCategory{
		model.GapInterviewerBackground,
		model.GapRoleTechnicalFocus,
		model.GapCandidateContext,
	}, a.Gaps)
	assert.True(t, a.IsOpen(model.GapInterviewerBackground))
	assert.False(t, a.IsOpen(model.GapLogistics))
	assert.False(t, a.ShouldResearchGaps(), "confidence is above threshold")
}

func TestAnalyze_NothingExamined(t *testing.T) {
	a := Analyze(nil, 0, 0.7)
	assert.Zero(t, a.Confidence)
	assert.Equal(t, model.GapPriority, a.Gaps)
	assert.True(t, a.ShouldResearchGaps())
}

func TestAnalyze_AtThresholdSkipsLoop2(t *testing.T) {
	ev := make([]model.EvidenceItem, 7)
	for i := range ev {
		ev[i] = model.EvidenceItem{SourceURL: "u", Title: "t", Topic: model.GapCompanyContext}
	}
	a := Analyze(ev, 10, 0.7)
	assert.InDelta(t, 0.7, a.Confidence, 1e-9)
	assert.False(t, a.ShouldResearchGaps())
}

func TestAnalyze_NoGapsSkipsLoop2(t *testing.T) {
	var ev []model.EvidenceItem
	for _, cat := range model.GapPriority {
		ev = append(ev, model.EvidenceItem{SourceURL: string(cat), Title: "t", Topic: cat})
	}
	a := Analyze(ev, 100, 0.7)
	assert.Empty(t, a.Gaps)
	assert.False(t, a.ShouldResearchGaps())
}

func TestAnalyze_MoreEvidenceNeverOpensGaps(t *testing.T) {
	base := []model.EvidenceItem{{SourceURL: "a", Title: "A", Topic: model.GapCompanyContext}}
	before := Analyze(base, 3, 0.7)
	after := Analyze(append(base, model.EvidenceItem{SourceURL: "b", Title: "B", Topic: model.GapLogistics}), 5, 0.7)

	for _, g := range after.Gaps {
		assert.True(t, before.IsOpen(g), "%s reopened", g)
	}
	assert.Less(t, len(after.Gaps), len(before.Gaps))
}
