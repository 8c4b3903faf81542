package models

import "time"

// DefaultMinSubmissions is the smallest group size that can contain a repeat.
const DefaultMinSubmissions = 2

// ScoreRange bounds lead scores, inclusive on both ends.
type ScoreRange struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"gtefield=Min"`
}

// RepeatLeadFilter lists every filter the repeat-leads view can send to
// the lead store. Optional fields are nil when the user did not set them.
type RepeatLeadFilter struct {
	StartDate      *time.Time  `json:"startDate,omitempty"`
	EndDate        *time.Time  `json:"endDate,omitempty"`
	MinSubmissions int         `json:"minSubmissions" validate:"gte=2"`
	MaxDaysBetween *int        `json:"maxDaysBetween,omitempty" validate:"omitempty,gte=0"`
	FormType       *string     `json:"formType,omitempty" validate:"omitempty,max=100"`
	LeadScoreRange *ScoreRange `json:"leadScoreRange,omitempty"`
}

// WithDefaults fills unset required values.
func (f RepeatLeadFilter) WithDefaults() RepeatLeadFilter {
	if f.MinSubmissions == 0 {
		f.MinSubmissions = DefaultMinSubmissions
	}
	return f
}
