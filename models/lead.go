package models

import (
	"time"
)

// LeadSubmission is a single form submission captured by the website.
// The same person may submit several times; Email is the identity key.
type LeadSubmission struct {
	ID    string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email string `gorm:"not null;index" json:"email"`

	// Content fields, nil when the form did not carry them
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Company  *string `json:"company"`
	Message  *string `gorm:"type:text" json:"message"`
	FormType *string `gorm:"index" json:"formType"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`

	// Behaviour captured at submission time
	LeadScore       int `gorm:"default:0" json:"leadScore"`
	PagesVisited    int `gorm:"default:0" json:"pagesVisited"`
	TimeOnSite      int `gorm:"default:0" json:"timeOnSite"` // seconds
	EventsTriggered int `gorm:"default:0" json:"eventsTriggered"`

	// Maintained by the store once the email has more than one submission
	IsRepeatLead bool `gorm:"default:false;index" json:"isRepeatLead"`
}

// TableName keeps the table name stable regardless of naming strategy.
func (LeadSubmission) TableName() string {
	return "lead_submissions"
}

// SubmissionSummary is the trimmed history entry shown in the detail view.
type SubmissionSummary struct {
	ID              string    `json:"id"`
	FormType        *string   `json:"formType"`
	LeadScore       int       `json:"leadScore"`
	CreatedAt       time.Time `json:"createdAt"`
	PagesVisited    int       `json:"pagesVisited"`
	TimeOnSite      int       `json:"timeOnSite"`
	EventsTriggered int       `json:"eventsTriggered"`
}

// Summary trims a submission to its history shape.
func (l LeadSubmission) Summary() SubmissionSummary {
	return SubmissionSummary{
		ID:              l.ID,
		FormType:        l.FormType,
		LeadScore:       l.LeadScore,
		CreatedAt:       l.CreatedAt,
		PagesVisited:    l.PagesVisited,
		TimeOnSite:      l.TimeOnSite,
		EventsTriggered: l.EventsTriggered,
	}
}

// FieldChange holds the previous and current value of a content field.
// A nil side means the field was absent on that submission.
type FieldChange struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// BehaviorChange is current minus previous for each behavioural counter.
type BehaviorChange struct {
	TimeOnSiteChange      int `json:"timeOnSiteChange"`
	PagesVisitedChange    int `json:"pagesVisitedChange"`
	EventsTriggeredChange int `json:"eventsTriggeredChange"`
	LeadScoreChange       int `json:"leadScoreChange"`
}

// RepeatLeadRecord is a submission that follows an earlier one from the
// same email, annotated with what changed since that earlier submission.
type RepeatLeadRecord struct {
	LeadSubmission

	OriginalLeadID    string                 `json:"originalLeadId"`
	PreviousLeadCount int                    `json:"previousLeadCount"`
	TimeBetweenLeads  int                    `json:"timeBetweenLeads"` // whole days
	Changes           map[string]FieldChange `json:"changes"`
	BehaviorChange    BehaviorChange         `json:"behaviorChange"`

	// Shared by every record of the same email. Treat as read-only.
	AllSubmissions []SubmissionSummary `json:"allSubmissions"`
}

// RepeatLeadDerived carries the values computed for a repeat submission.
type RepeatLeadDerived struct {
	OriginalLeadID    string
	PreviousLeadCount int
	TimeBetweenLeads  int
	Changes           map[string]FieldChange
	BehaviorChange    BehaviorChange
	AllSubmissions    []SubmissionSummary
}

// NewRepeatLeadRecord copies base and attaches the derived values.
func NewRepeatLeadRecord(base LeadSubmission, d RepeatLeadDerived) RepeatLeadRecord {
	changes := d.Changes
	if changes == nil {
		changes = map[string]FieldChange{}
	}
	return RepeatLeadRecord{
		LeadSubmission:    base,
		OriginalLeadID:    d.OriginalLeadID,
		PreviousLeadCount: d.PreviousLeadCount,
		TimeBetweenLeads:  d.TimeBetweenLeads,
		Changes:           changes,
		BehaviorChange:    d.BehaviorChange,
		AllSubmissions:    d.AllSubmissions,
	}
}
