package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/interview-prep/internal/model"
)

type rule struct {
	label string
	re    *regexp.Regexp
	// group is the submatch holding the entity text; 0 means the whole match.
	group int
}

const (
	monthNames = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)`
	personName = `[A-Z][a-z][A-Za-z'-]*(?:[ \t]+[A-Z][a-z][A-Za-z'-]*)?`
	titleWords = `[A-Z][A-Za-z0-9&'-]*(?:[ \t]+[A-Z][A-Za-z0-9&'-]*){0,3}`
)

// Rules run in this order; the normalizer keeps the first surviving value
// per label, so more specific rules come first.
var defaultRules = []rule{
	{model.LabelCandidate, regexp.MustCompile(`(?m)^[ \t]*(?:Hi|Hello|Dear|Hey)[ \t]+(` + personName + `)[ \t]*[,!:]`), 1},
	{model.LabelCandidate, regexp.MustCompile(`(?i:candidate)[ \t]*:[ \t]*(` + personName + `)`), 1},

	{model.LabelInterviewer, regexp.MustCompile(`(?i:interviewer)[ \t]*:[ \t]*((?:Dr\.?|Mr\.?|Ms\.?|Mrs\.?|Prof\.?)?[ \t]*` + personName + `)`), 1},
	{model.LabelInterviewer, regexp.MustCompile(`(?i:(?:interview|meet|speak|chat|call)(?:ing)?[ \t]+with)[ \t]*:?[ \t]*((?:Dr\.?|Mr\.?|Ms\.?|Mrs\.?|Prof\.?)?[ \t]*` + personName + `)`), 1},

	{model.LabelCompany, regexp.MustCompile(`(?i:company)[ \t]*:[ \t]*(` + titleWords + `)`), 1},
	{model.LabelCompany, regexp.MustCompile(`\b(?:at|from|join)[ \t]+(` + titleWords + `)`), 1},

	{model.LabelRole, regexp.MustCompile(`(?i:role|position)[ \t]*:[ \t]*([^\n]+)`), 1},
	{model.LabelRole, regexp.MustCompile(`(?i)\b(?:(?:senior|junior|staff|principal|lead)[ \t]+)?(?:software|backend|back-end|frontend|front-end|full[ -]stack|data|product|ux|ui|ml|machine learning|devops|platform|mobile)[ \t]+(?:engineer|developer|scientist|manager|designer|analyst)(?:[ \t]+intern(?:ship)?)?\b`), 0},
	{model.LabelRole, regexp.MustCompile(`(?i)\b(?:software engineering|research|ai|data|ux)[ \t]+intern(?:ship)?\b`), 0},

	{model.LabelDate, regexp.MustCompile(`\b(?:(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),?[ \t]+)?` + monthNames + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?(?:,?[ \t]+\d{4})?`), 0},
	{model.LabelDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), 0},
	{model.LabelDate, regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`), 0},

	{model.LabelTime, regexp.MustCompile(`\b\d{1,2}(?::\d{2})?[ \t]*(?:[AaPp]\.?[Mm]\.?)(?:[ \t]*(?:[A-Z]{1,2}[SD]?T))?`), 0},

	{model.LabelDuration, regexp.MustCompile(`(?i)\b\d{1,3}[ \t-]?(?:minutes?|mins?|hours?|hrs?)\b`), 0},

	{model.LabelFormat, regexp.MustCompile(`(?i)\b(?:zoom|google meet|microsoft teams|teams|webex|skype|phone(?: call| screen)?|video call|in-person|on-?site|virtual|remote)\b`), 0},

	{model.LabelLocation, regexp.MustCompile(`(?i:location|address|venue)[ \t]*:[ \t]*([^\n]+)`), 1},
	{model.LabelLocation, regexp.MustCompile(`[A-Z][a-z]+[ \t]+(?:Center|Building|Hall)(?:,?[ \t]*Room[ \t]*\d+)?`), 0},

	{model.LabelLink, regexp.MustCompile(`https?://[^\s<>"')]+`), 0},
}

// Pattern extracts spans with regular expressions. It never fails and needs
// no network access.
type Pattern struct {
	rules []rule
}

// NewPattern returns the default rule set.
func NewPattern() *Pattern {
	return &Pattern{rules: defaultRules}
}

func (p *Pattern) Name() string { return "pattern" }

func (p *Pattern) Extract(_ context.Context, text string) ([]model.EntitySpan, error) {
	var spans []model.EntitySpan
	seen := make(map[string]bool)
	for _, r := range p.rules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			v := strings.TrimSpace(strings.TrimRight(m[r.group], ".,;"))
			if v == "" {
				continue
			}
			key := r.label + "\x00" + v
			if seen[key] {
				continue
			}
			seen[key] = true
			spans = append(spans, model.EntitySpan{Label: r.label, Text: v, Score: 1})
		}
	}
	return spans, nil
}
