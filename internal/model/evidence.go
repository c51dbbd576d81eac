package model

import "strings"

// GapCategory names a fact category the prep guide expects evidence for.
type GapCategory string

const (
	GapInterviewerBackground GapCategory = "interviewer_background"
	GapCompanyContext        GapCategory = "company_context"
	GapRoleTechnicalFocus    GapCategory = "role_technical_focus"
	GapCandidateContext      GapCategory = "candidate_context"
	GapLogistics             GapCategory = "logistics"
)

// GapPriority is the fixed order in which open gaps are addressed.
var GapPriority = []GapCategory{
	GapInterviewerBackground,
	GapCompanyContext,
	GapRoleTechnicalFocus,
	GapCandidateContext,
	GapLogistics,
}

// Priority returns the category's position in GapPriority, or -1.
func (g GapCategory) Priority() int {
	for i, c := range GapPriority {
		if c == g {
			return i
		}
	}
	return -1
}

// ParseGapCategory converts a string to a known category.
func ParseGapCategory(s string) (GapCategory, bool) {
	g := GapCategory(strings.ToLower(strings.TrimSpace(s)))
	return g, g.Priority() >= 0
}

// EvidenceItem is one accepted search result.
type EvidenceItem struct {
	SourceURL      string `json:"source_url"`
	Title          string `json:"title"`
	ContentExcerpt string `json:"content_excerpt"`
	Query          string `json:"query"`
	// Topic is the category of the query template that produced the item.
	Topic GapCategory `json:"topic"`
	// Gap is the open gap that triggered a follow-up query; nil for broad research.
	Gap  *GapCategory `json:"gap,omitempty"`
	Loop int          `json:"loop"`
}

// Acceptable reports whether a result carries enough identity to be evidence.
func Acceptable(url, title string) bool {
	return strings.TrimSpace(url) != "" && strings.TrimSpace(title) != ""
}

// LoopStats summarizes one research pass.
type LoopStats struct {
	Queries   int `json:"queries"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	CacheHits int `json:"cache_hits"`
	Examined  int `json:"examined"`
	Accepted  int `json:"accepted"`
	Dropped   int `json:"dropped"`
}
