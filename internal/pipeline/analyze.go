package pipeline

import (
	"github.com/sells-group/interview-prep/internal/model"
)

// Analysis scores the evidence gathered so far.
type Analysis struct {
	Confidence float64                   `json:"confidence"`
	Examined   int                       `json:"examined"`
	Accepted   int                       `json:"accepted"`
	Coverage   map[model.GapCategory]int `json:"coverage"`
	// Gaps are the categories with no evidence, in priority order.
	Gaps      []model.GapCategory `json:"gaps"`
	Threshold float64             `json:"threshold"`
}

// Analyze computes confidence as accepted over examined results and finds
// the categories no accepted evidence was produced for. Coverage follows
// the category of the query that produced each item, not its prose.
func Analyze(evidence []model.EvidenceItem, examined int, threshold float64) Analysis {
	a := Analysis{
		Examined:  examined,
		Accepted:  len(evidence),
		Coverage:  make(map[model.GapCategory]int, len(model.GapPriority)),
		Threshold: threshold,
	}
	if examined > 0 {
		a.Confidence = float64(a.Accepted) / float64(examined)
		if a.Confidence > 1 {
			a.Confidence = 1
		}
	}
	for _, ev := range evidence {
		a.Coverage[ev.Topic]++
	}
	for _, cat := range model.GapPriority {
		if a.Coverage[cat] == 0 {
			a.Gaps = append(a.Gaps, cat)
		}
	}
	return a
}

// ShouldResearchGaps reports whether targeted research is worth running:
// something is missing and the evidence is not already decisive.
func (a Analysis) ShouldResearchGaps() bool {
	return len(a.Gaps) > 0 && a.Confidence < a.Threshold
}

// IsOpen reports whether cat is still a gap.
func (a Analysis) IsOpen(cat model.GapCategory) bool {
	for _, g := range a.Gaps {
		if g == cat {
			return true
		}
	}
	return false
}
