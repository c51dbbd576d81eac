package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/interview-prep/internal/model"
)

// Fallback builds the document from the record and evidence alone. The
// output depends only on its inputs and names no person or organization
// that does not appear in them.
func Fallback(rec *model.InterviewRecord, evidence []model.EvidenceItem, a Analysis, reason string) *model.Document {
	sources, index := buildSources(evidence)
	bodies := map[model.SectionKey]string{
		model.SectionBeforeInterview:       beforeInterview(rec),
		model.SectionInterviewerBackground: fallbackInterviewer(rec, evidence, index, a),
		model.SectionCompanyRole:           fallbackCompanyRole(rec, evidence, index),
		model.SectionQuestions:             fallbackQuestions(rec),
		model.SectionClosing:               fallbackClosing(rec),
	}

	doc := &model.Document{
		Title:          documentTitle(rec),
		Sources:        sources,
		Path:           model.PathFallback,
		FallbackReason: reason,
	}
	for _, key := range model.SectionOrder {
		doc.Sections = append(doc.Sections, model.Section{Key: key, Heading: key.Heading(), Body: bodies[key]})
	}
	return doc
}

func byTopic(evidence []model.EvidenceItem, topic model.GapCategory) []model.EvidenceItem {
	var out []model.EvidenceItem
	seen := make(map[string]bool)
	for _, ev := range evidence {
		if ev.Topic == topic && !seen[ev.SourceURL] {
			seen[ev.SourceURL] = true
			out = append(out, ev)
		}
	}
	return out
}

func writeItems(b *strings.Builder, items []model.EvidenceItem, index map[string]int) {
	for _, ev := range items {
		fmt.Fprintf(b, "- %s [%d]\n", ev.Title, index[ev.SourceURL])
		if ex := excerpt(ev.ContentExcerpt, 200); ex != "" {
			fmt.Fprintf(b, "  %s\n", ex)
		}
	}
}

func fallbackInterviewer(rec *model.InterviewRecord, evidence []model.EvidenceItem, index map[string]int, a Analysis) string {
	items := byTopic(evidence, model.GapInterviewerBackground)
	if a.IsOpen(model.GapInterviewerBackground) || len(items) == 0 {
		return NoInterviewerInfo
	}

	var b strings.Builder
	if rec.Interviewer != "" {
		fmt.Fprintf(&b, "Sources that mention %s:\n", rec.Interviewer)
	} else {
		b.WriteString("Sources about the people you may meet:\n")
	}
	writeItems(&b, items, index)
	b.WriteString("\nSkim these before the interview and note recent work or shared interests you could ask about.\n")
	return b.String()
}

func fallbackCompanyRole(rec *model.InterviewRecord, evidence []model.EvidenceItem, index map[string]int) string {
	var b strings.Builder

	company := byTopic(evidence, model.GapCompanyContext)
	if rec.CompanyName != "" {
		fmt.Fprintf(&b, "About %s:\n", rec.CompanyName)
	} else {
		b.WriteString("About the company:\n")
	}
	if len(company) > 0 {
		writeItems(&b, company, index)
	} else {
		b.WriteString("- No company background was found in the available sources. Review the company's own website and recent announcements.\n")
	}

	role := byTopic(evidence, model.GapRoleTechnicalFocus)
	if rec.Role != "" {
		fmt.Fprintf(&b, "\nAbout the %s role:\n", rec.Role)
	} else {
		b.WriteString("\nAbout the role:\n")
	}
	if len(role) > 0 {
		writeItems(&b, role, index)
	} else {
		b.WriteString("- No role-specific sources were found. Use the job description as your primary reference.\n")
	}

	if process := byTopic(evidence, model.GapLogistics); len(process) > 0 {
		b.WriteString("\nInterview process notes:\n")
		writeItems(&b, process, index)
	}
	if other := byTopic(evidence, model.GapCandidateContext); len(other) > 0 {
		b.WriteString("\nOther related mentions:\n")
		writeItems(&b, other, index)
	}
	return b.String()
}

func fallbackQuestions(rec *model.InterviewRecord) string {
	position := "this position"
	if rec.Role != "" {
		position = "the " + rec.Role + " position"
	}
	employer := "here"
	if rec.CompanyName != "" {
		employer = "at " + rec.CompanyName
	}

	var b strings.Builder
	b.WriteString("Technical:\n")
	b.WriteString("- Walk me through a system you built end to end. Which trade-offs did you make?\n")
	fmt.Fprintf(&b, "- Which parts of your experience prepare you best for %s?\n", position)
	b.WriteString("- How do you test and debug code that you did not write?\n")
	b.WriteString("- Describe how you would approach a performance problem you cannot reproduce locally.\n")

	b.WriteString("\nBehavioral:\n")
	b.WriteString("- Tell me about a time you disagreed with a teammate and how you resolved it.\n")
	b.WriteString("- Describe a project that did not go as planned. What did you change afterwards?\n")
	fmt.Fprintf(&b, "- Why do you want to work %s?\n", employer)

	b.WriteString("\nQuestions to ask:\n")
	b.WriteString("- What does success look like in the first ninety days?\n")
	b.WriteString("- How is work planned and prioritized on the team?\n")
	b.WriteString("- What do you enjoy most about working here?\n")
	return b.String()
}

func fallbackClosing(rec *model.InterviewRecord) string {
	var b strings.Builder
	switch {
	case rec.InterviewDate != "" && rec.InterviewTime != "":
		fmt.Fprintf(&b, "- Your interview is scheduled for %s at %s.\n", rec.InterviewDate, rec.InterviewTime)
	case rec.InterviewDate != "":
		fmt.Fprintf(&b, "- Your interview is scheduled for %s.\n", rec.InterviewDate)
	}
	if rec.Format != "" {
		fmt.Fprintf(&b, "- The interview format is %s. Be ready a few minutes early.\n", rec.Format)
	}
	if rec.Duration != "" {
		fmt.Fprintf(&b, "- Plan your answers for a %s conversation and leave time for your own questions.\n", rec.Duration)
	}
	b.WriteString("- Keep a copy of your resume and this guide nearby.\n")
	b.WriteString("- Send a short thank-you note within a day that mentions something specific from the conversation.\n")
	b.WriteString("- Write down the questions you were asked while they are fresh.\n")
	return b.String()
}
