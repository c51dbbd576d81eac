package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/model"
)

// NoInterviewerInfo is the interviewer section when research found nothing.
const NoInterviewerInfo = "No information found about the interviewer in the available sources. " +
	"Ask your recruiting contact who will run the interview so you can prepare for them specifically."

// ComposerConfig tunes document generation.
type ComposerConfig struct {
	// MinSectionChars is the shortest generated section accepted; anything
	// shorter is treated as degraded output.
	MinSectionChars int
	Timeout         time.Duration
	MaxTokens       int64
}

// Composer writes the prep guide, falling back to the deterministic
// template when generation cannot be trusted.
type Composer struct {
	gen generate.Generator
	cfg ComposerConfig
}

// NewComposer builds a Composer. A nil generator always falls back.
func NewComposer(gen generate.Generator, cfg ComposerConfig) *Composer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Composer{gen: gen, cfg: cfg}
}

var sectionPrompts = map[model.SectionKey]string{
	model.SectionInterviewerBackground: "Write the Interviewer Background section: who the interviewer is, their current role and " +
		"prior experience, and what that suggests about the conversation. Use only the sources.",
	model.SectionCompanyRole: "Write the Company and Role Context section: what the company does, its products and culture, " +
		"and what the role is likely to focus on day to day.",
	model.SectionQuestions: "Write the Technical and Behavioral Questions section: five likely technical questions, four behavioral " +
		"questions, and three questions the candidate should ask. Tailor every question to the role and company.",
	model.SectionClosing: "Write the Closing Guidance section: reminders for the day of the interview and how to follow up afterwards.",
}

// Compose produces the document for rec. Section 1 always comes from the
// record; the interviewer section states that nothing was found while that
// gap is open. The returned document reports which path produced it.
func (c *Composer) Compose(ctx context.Context, rec *model.InterviewRecord, evidence []model.EvidenceItem, a Analysis) *model.Document {
	switch {
	case c.gen == nil:
		return Fallback(rec, evidence, a, "text generation not configured")
	case len(evidence) == 0:
		return Fallback(rec, evidence, a, "no evidence gathered")
	}

	sources, index := buildSources(evidence)
	system := groundingPrompt(rec, evidence, index)

	doc := &model.Document{
		Title:   documentTitle(rec),
		Sources: sources,
		Path:    model.PathGenerated,
	}
	for _, key := range model.SectionOrder {
		var body string
		switch {
		case key == model.SectionBeforeInterview:
			body = beforeInterview(rec)
		case key == model.SectionInterviewerBackground && a.IsOpen(model.GapInterviewerBackground):
			body = NoInterviewerInfo
		default:
			text, err := c.generate(ctx, system, sectionPrompts[key])
			if err != nil {
				zap.L().Warn("pipeline: generation failed, using fallback document",
					zap.String("section", string(key)),
					zap.Error(err),
				)
				return Fallback(rec, evidence, a, "generation failed: "+err.Error())
			}
			if len(strings.TrimSpace(text)) < c.cfg.MinSectionChars {
				return Fallback(rec, evidence, a, fmt.Sprintf("generated %s section was degraded", key))
			}
			body = strings.TrimSpace(text)
		}
		doc.Sections = append(doc.Sections, model.Section{Key: key, Heading: key.Heading(), Body: body})
	}
	return doc
}

func (c *Composer) generate(ctx context.Context, system, prompt string) (string, error) {
	callCtx := context.WithoutCancel(ctx)
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.gen.Generate(callCtx, generate.Request{System: system, Prompt: prompt, MaxTokens: c.cfg.MaxTokens})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// groundingPrompt is shared by every section so providers with prompt
// caching read it once per document.
func groundingPrompt(rec *model.InterviewRecord, evidence []model.EvidenceItem, index map[string]int) string {
	var b strings.Builder
	b.WriteString("You are preparing a candidate for a job interview. Write plain text with short paragraphs and \"-\" bullets. ")
	b.WriteString("Use only facts from the interview details and sources below and cite sources as [n]. ")
	b.WriteString("Never invent names of people or organizations. If the sources do not cover something, say so. ")
	b.WriteString("Do not repeat the section heading.\n\nINTERVIEW DETAILS\n")
	for _, f := range recordFields(rec) {
		fmt.Fprintf(&b, "%s: %s\n", f.name, f.value)
	}
	b.WriteString("\nSOURCES\n")
	seen := make(map[int]bool)
	for _, ev := range evidence {
		n := index[ev.SourceURL]
		if seen[n] {
			continue
		}
		seen[n] = true
		fmt.Fprintf(&b, "[%d] %s (%s) topic=%s\n%s\n\n", n, ev.Title, ev.SourceURL, ev.Topic, ev.ContentExcerpt)
	}
	return b.String()
}

// buildSources numbers evidence URLs in first-seen order.
func buildSources(evidence []model.EvidenceItem) ([]model.Source, map[string]int) {
	index := make(map[string]int)
	var sources []model.Source
	for _, ev := range evidence {
		if _, ok := index[ev.SourceURL]; ok {
			continue
		}
		n := len(sources) + 1
		index[ev.SourceURL] = n
		sources = append(sources, model.Source{Index: n, Title: ev.Title, URL: ev.SourceURL})
	}
	return sources, index
}

type field struct {
	name, value string
}

func recordFields(rec *model.InterviewRecord) []field {
	all := []field{
		{"Candidate", rec.CandidateName},
		{"Company", rec.CompanyName},
		{"Role", rec.Role},
		{"Interviewer", rec.Interviewer},
		{"Date", rec.InterviewDate},
		{"Time", rec.InterviewTime},
		{"Duration", rec.Duration},
		{"Format", rec.Format},
		{"Location", rec.Location},
	}
	out := all[:0]
	for _, f := range all {
		if f.value != "" {
			out = append(out, f)
		}
	}
	return out
}

func documentTitle(rec *model.InterviewRecord) string {
	title := "INTERVIEW PREP GUIDE"
	if rec.CandidateName != "" {
		title += ": " + rec.CandidateName
	}
	switch {
	case rec.Role != "" && rec.CompanyName != "":
		title += " - " + rec.Role + " at " + rec.CompanyName
	case rec.CompanyName != "":
		title += " - " + rec.CompanyName
	case rec.Role != "":
		title += " - " + rec.Role
	}
	return title
}

// beforeInterview is section 1 on both paths.
func beforeInterview(rec *model.InterviewRecord) string {
	var b strings.Builder
	b.WriteString("Interview details:\n")
	for _, f := range recordFields(rec) {
		fmt.Fprintf(&b, "- %s: %s\n", f.name, f.value)
	}

	b.WriteString("\nChecklist:\n")
	if rec.InterviewDate == "" || rec.InterviewTime == "" {
		b.WriteString("- Ask the recruiter to confirm the exact date and time, including the time zone.\n")
	} else {
		b.WriteString("- Add the interview to your calendar with a reminder the day before.\n")
	}
	if rec.Location != "" {
		b.WriteString("- Plan your route to the location and arrive ten minutes early.\n")
	} else {
		b.WriteString("- Test the meeting link, camera and microphone at least a day ahead.\n")
	}
	b.WriteString("- Re-read the job description and note where your experience matches it.\n")
	b.WriteString("- Prepare two or three stories about past projects with measurable outcomes.\n")
	return b.String()
}
