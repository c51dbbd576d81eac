package model

import (
	"fmt"
	"strings"
)

// SectionKey identifies one of the fixed prep guide sections.
type SectionKey string

const (
	SectionBeforeInterview       SectionKey = "before_interview"
	SectionInterviewerBackground SectionKey = "interviewer_background"
	SectionCompanyRole           SectionKey = "company_role_context"
	SectionQuestions             SectionKey = "questions"
	SectionClosing               SectionKey = "closing_guidance"
)

// SectionOrder is the order sections appear in every document.
var SectionOrder = []SectionKey{
	SectionBeforeInterview,
	SectionInterviewerBackground,
	SectionCompanyRole,
	SectionQuestions,
	SectionClosing,
}

var sectionHeadings = map[SectionKey]string{
	SectionBeforeInterview:       "Before the Interview",
	SectionInterviewerBackground: "Interviewer Background",
	SectionCompanyRole:           "Company and Role Context",
	SectionQuestions:             "Technical and Behavioral Questions",
	SectionClosing:               "Closing Guidance",
}

// Heading returns the display heading for the section.
func (k SectionKey) Heading() string {
	return sectionHeadings[k]
}

// CompositionPath records how a document was produced.
type CompositionPath string

const (
	PathGenerated CompositionPath = "generated"
	PathFallback  CompositionPath = "fallback"
)

// Section is one rendered block of the guide.
type Section struct {
	Key     SectionKey `json:"key"`
	Heading string     `json:"heading"`
	Body    string     `json:"body"`
}

// Source is a numbered citation.
type Source struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Document is the final prep guide.
type Document struct {
	Title          string          `json:"title"`
	Sections       []Section       `json:"sections"`
	Sources        []Source        `json:"sources"`
	Path           CompositionPath `json:"path"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
}

// Section returns the section with the given key.
func (d *Document) Section(key SectionKey) (Section, bool) {
	for _, s := range d.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// SectionMap returns section bodies keyed by section.
func (d *Document) SectionMap() map[SectionKey]string {
	m := make(map[SectionKey]string, len(d.Sections))
	for _, s := range d.Sections {
		m[s.Key] = s.Body
	}
	return m
}

const rule = "================================================================================"

// Render produces the text artifact. Output depends only on the document.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(d.Title + "\n")
	b.WriteString(rule + "\n")

	for i, s := range d.Sections {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, s.Heading)
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("SOURCES\n")
	b.WriteString(rule + "\n")
	if len(d.Sources) == 0 {
		b.WriteString("No external sources were found during research.\n")
	}
	for _, src := range d.Sources {
		fmt.Fprintf(&b, "[%d] %s - %s\n", src.Index, src.Title, src.URL)
	}
	return b.String()
}
