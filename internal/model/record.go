package model

import (
	"encoding/json"
	"time"
)

// RecordStatus is the lifecycle status of an interview record.
type RecordStatus string

const (
	StatusPreparing   RecordStatus = "preparing"
	StatusResearching RecordStatus = "researching"
	StatusReady       RecordStatus = "ready"
	StatusFailed      RecordStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPreparing, StatusResearching, StatusReady, StatusFailed:
		return true
	}
	return false
}

// InterviewRecord is the canonical record extracted from one invitation email.
// Every text field uses the empty string when the value is unknown.
type InterviewRecord struct {
	ID            int64           `json:"id"`
	EmailID       string          `json:"email_id"`
	CandidateName string          `json:"candidate_name"`
	CompanyName   string          `json:"company_name"`
	Role          string          `json:"role"`
	Interviewer   string          `json:"interviewer"`
	InterviewDate string          `json:"interview_date"`
	InterviewTime string          `json:"interview_time"`
	Duration      string          `json:"duration"`
	Location      string          `json:"location"`
	Format        string          `json:"format"`
	Status        RecordStatus    `json:"status"`
	RawEntities   json.RawMessage `json:"raw_entities,omitempty"`
	ContentHash   string          `json:"content_hash"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Placeholders returns the query template variables for the record.
func (r *InterviewRecord) Placeholders() map[string]string {
	return map[string]string{
		"candidate":   r.CandidateName,
		"company":     r.CompanyName,
		"role":        r.Role,
		"interviewer": r.Interviewer,
		"date":        r.InterviewDate,
		"time":        r.InterviewTime,
		"duration":    r.Duration,
		"location":    r.Location,
		"format":      r.Format,
	}
}

// PopulatedValues returns the non-empty entity values in a stable order.
func (r *InterviewRecord) PopulatedValues() []string {
	var out []string
	for _, v := range []string{
		r.CandidateName, r.CompanyName, r.Role, r.Interviewer,
		r.InterviewDate, r.InterviewTime, r.Duration, r.Location, r.Format,
	} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StatusChange is one row of the record's audit trail.
type StatusChange struct {
	InterviewID int64     `json:"interview_id"`
	FieldName   string    `json:"field_name"`
	OldValue    string    `json:"old_value"`
	NewValue    string    `json:"new_value"`
	ChangedAt   time.Time `json:"changed_at"`
}
