package model

import "time"

// Entity labels produced by extractors.
const (
	LabelCandidate   = "CANDIDATE"
	LabelCompany     = "COMPANY"
	LabelRole        = "ROLE"
	LabelInterviewer = "INTERVIEWER"
	LabelDate        = "DATE"
	LabelTime        = "TIME"
	LabelDuration    = "DURATION"
	LabelLocation    = "LOCATION"
	LabelFormat      = "FORMAT"
	LabelLink        = "LINK"
)

// EntitySpan is one typed span returned by an extractor.
type EntitySpan struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Score float64 `json:"score,omitempty"`
}

// Email is a raw message handed to the pipeline.
type Email struct {
	ID      string    `json:"id"`
	Folder  string    `json:"folder,omitempty"`
	From    string    `json:"from,omitempty"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date,omitempty"`
	Body    string    `json:"body"`
}

// Text is the content handed to entity extraction.
func (e Email) Text() string {
	if e.Subject == "" {
		return e.Body
	}
	return e.Subject + "\n\n" + e.Body
}
