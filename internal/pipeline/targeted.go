package pipeline

import (
	"context"

	"github.com/sells-group/interview-prep/internal/model"
)

// ResearchLoop2 issues one follow-up query per open gap, in gap order,
// until the follow-up budget is spent. Gaps with no renderable template
// are skipped without using budget. Evidence is tagged with its gap.
func (r *Researcher) ResearchLoop2(ctx context.Context, rec *model.InterviewRecord, gaps []model.GapCategory) LoopResult {
	planned := planFollowups(rec, gaps, r.cfg.Templates, r.cfg.MaxFollowups)
	res := r.run(ctx, planned, r.cfg.Loop2Depth, 2)
	res.Stats.Skipped = len(gaps) - len(planned)
	return res
}

// followupSites narrows Loop 2 queries for a gap to a single domain.
var followupSites = map[model.GapCategory]string{
	model.GapInterviewerBackground: "linkedin.com",
}

// planFollowups renders the follow-up queries Loop 2 would issue.
func planFollowups(rec *model.InterviewRecord, gaps []model.GapCategory, t Templates, budget int) []plannedQuery {
	vars := rec.Placeholders()
	var planned []plannedQuery
	for _, gap := range gaps {
		if len(planned) >= budget {
			break
		}
		q, ok := RenderFirst(t.Loop2[gap], vars)
		if !ok {
			continue
		}
		g := gap
		planned = append(planned, plannedQuery{text: q, topic: gap, gap: &g, site: followupSites[gap]})
	}
	return planned
}
