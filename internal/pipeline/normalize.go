package pipeline

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/interview-prep/internal/model"
)

var upper = cases.Upper(language.Und)

// Words that mark a span as something other than the entity it was
// labeled as, e.g. "Launchpad AI Recruiting Team" tagged COMPANY.
var rejectWords = map[string][]string{
	model.LabelCandidate: {
		"engineer", "manager", "scientist", "developer", "team", "recruiting",
		"interview", "internship", "invitation", "talent", "acquisition",
		"senior", "principal", "technical", "center", "event",
	},
	model.LabelCompany:     {"team", "recruiting", "hiring", "acquisition", "interview", "invitation", "technical", "candidate", "schedule", "options"},
	model.LabelInterviewer: {"team", "labs", "recruiting", "talent", "acquisition"},
	model.LabelRole:        {"interview", "round", "session", "discussion"},
}

var greetings = []string{"hi ", "hello ", "dear ", "hey "}

var durationUnits = []string{"minute", "min", "hour", "hr"}

// Normalize builds the canonical record from extracted spans. Every field
// keeps the first span that survives cleaning; absent fields are "".
// Without a candidate name the record is still returned, marked failed,
// together with ErrExtractionIncomplete.
func Normalize(em model.Email, spans []model.EntitySpan) (*model.InterviewRecord, error) {
	grouped := make(map[string][]string)
	for _, s := range spans {
		label := upper.String(strings.TrimSpace(s.Label))
		v, ok := cleanSpan(label, s.Text)
		if !ok {
			continue
		}
		if !contains(grouped[label], v) {
			grouped[label] = append(grouped[label], v)
		}
	}

	raw, err := json.Marshal(grouped)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal entities")
	}

	first := func(label string) string {
		if vs := grouped[label]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	rec := &model.InterviewRecord{
		EmailID:       em.ID,
		CandidateName: first(model.LabelCandidate),
		CompanyName:   first(model.LabelCompany),
		Role:          first(model.LabelRole),
		InterviewDate: first(model.LabelDate),
		InterviewTime: first(model.LabelTime),
		Duration:      first(model.LabelDuration),
		Location:      first(model.LabelLocation),
		Format:        first(model.LabelFormat),
		Status:        model.StatusPreparing,
		RawEntities:   raw,
		ContentHash:   ContentHash(em),
	}
	// An interviewer span that repeats the candidate is the greeting, not
	// the person running the interview.
	for _, v := range grouped[model.LabelInterviewer] {
		if !strings.EqualFold(v, rec.CandidateName) {
			rec.Interviewer = v
			break
		}
	}

	if rec.CandidateName == "" {
		rec.Status = model.StatusFailed
		rec.FailureReason = model.ErrExtractionIncomplete.Error()
		return rec, eris.Wrapf(model.ErrExtractionIncomplete, "pipeline: normalize email %s", em.ID)
	}
	return rec, nil
}

// cleanSpan applies the per-label rules and reports whether the value
// survives.
func cleanSpan(label, text string) (string, bool) {
	v := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	v = strings.TrimFunc(v, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;:\"'()", r)
	})
	lower := strings.ToLower(v)

	switch label {
	case model.LabelCandidate:
		for _, g := range greetings {
			if strings.HasPrefix(lower, g) {
				v = strings.TrimSpace(v[len(g):])
				lower = strings.ToLower(v)
				break
			}
		}
	case model.LabelCompany:
		for _, p := range []string{"at ", "from "} {
			if strings.HasPrefix(lower, p) {
				v = strings.TrimSpace(v[len(p):])
				lower = strings.ToLower(v)
				break
			}
		}
	case model.LabelDuration:
		if !containsAny(lower, durationUnits) {
			return "", false
		}
	case model.LabelDate:
		if isDigits(v) {
			return "", false
		}
	case model.LabelInterviewer, model.LabelRole, model.LabelTime,
		model.LabelLocation, model.LabelFormat, model.LabelLink:
	default:
		return "", false
	}

	if len([]rune(v)) < 2 {
		return "", false
	}
	if containsAny(lower, rejectWords[label]) {
		return "", false
	}
	return v, true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
