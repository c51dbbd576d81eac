package pipeline

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/interview-prep/internal/model"
)

// Templates holds the query templates for both research loops, keyed by
// the category each query provides evidence for. Placeholders are record
// fields in braces, e.g. {company}.
type Templates struct {
	Loop1 map[model.GapCategory][]string `yaml:"loop1"`
	Loop2 map[model.GapCategory][]string `yaml:"loop2"`
}

// DefaultTemplates returns the built-in query templates.
func DefaultTemplates() Templates {
	return Templates{
		Loop1: map[model.GapCategory][]string{
			model.GapInterviewerBackground: {"{interviewer} {company}", "{interviewer}"},
			model.GapCompanyContext:        {"{company} company background"},
			model.GapRoleTechnicalFocus:    {"{role} {company} role responsibilities", "{role} role responsibilities"},
			model.GapCandidateContext:      {"{candidate} {company}"},
			model.GapLogistics:             {"{company} interview process {format}", "{company} interview process"},
		},
		Loop2: map[model.GapCategory][]string{
			model.GapInterviewerBackground: {
				"{interviewer} {company} linkedin background",
				"{interviewer} linkedin background",
				"{company} interviewer linkedin",
			},
			model.GapCompanyContext:     {"{company} mission values culture"},
			model.GapRoleTechnicalFocus: {"{role} {company} technical interview questions", "{role} technical interview questions"},
			model.GapCandidateContext:   {"{company} {role} candidate expectations", "{role} candidate expectations"},
			model.GapLogistics:          {"{company} interview process candidate experience"},
		},
	}
}

// LoadTemplates reads a YAML override file. Categories present in the file
// replace the defaults; absent categories keep them. An empty path returns
// the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, eris.Wrapf(err, "pipeline: read templates %s", path)
	}
	var override Templates
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Templates{}, eris.Wrapf(err, "pipeline: parse templates %s", path)
	}

	for loop, src := range map[string]map[model.GapCategory][]string{"loop1": override.Loop1, "loop2": override.Loop2} {
		dst := t.Loop1
		if loop == "loop2" {
			dst = t.Loop2
		}
		for raw, tmpls := range src {
			cat, ok := model.ParseGapCategory(string(raw))
			if !ok {
				return Templates{}, eris.Errorf("pipeline: templates %s: unknown category %q", loop, raw)
			}
			dst[cat] = tmpls
		}
	}
	return t, nil
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Render fills tmpl from vars. It reports false when any placeholder is
// unknown or empty, so no query is built from a missing field.
func Render(tmpl string, vars map[string]string) (string, bool) {
	ok := true
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		v := strings.TrimSpace(vars[m[1:len(m)-1]])
		if v == "" {
			ok = false
		}
		return v
	})
	if !ok {
		return "", false
	}
	return strings.Join(strings.Fields(out), " "), true
}

// RenderFirst returns the first template that renders completely.
func RenderFirst(tmpls []string, vars map[string]string) (string, bool) {
	for _, t := range tmpls {
		if q, ok := Render(t, vars); ok {
			return q, true
		}
	}
	return "", false
}
