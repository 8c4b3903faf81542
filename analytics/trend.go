package analytics

import (
	"fmt"

	"hubebony/models"
)

// Trend is the overall direction of a lead's behaviour between submissions.
type Trend string

const (
	TrendIncreasing Trend = "Increasing"
	TrendDecreasing Trend = "Decreasing"
	TrendMixed      Trend = "Mixed"
)

// ClassifyTrend counts the strictly positive behaviour deltas.
// Three or four is Increasing, zero or one is Decreasing, two is Mixed.
func ClassifyTrend(bc models.BehaviorChange) Trend {
	positive := 0
	for _, v := range []int{
		bc.TimeOnSiteChange,
		bc.PagesVisitedChange,
		bc.EventsTriggeredChange,
		bc.LeadScoreChange,
	} {
		if v > 0 {
			positive++
		}
	}

	switch {
	case positive >= 3:
		return TrendIncreasing
	case positive <= 1:
		return TrendDecreasing
	default:
		return TrendMixed
	}
}

// FormatDuration renders seconds as "Xh Ym", "Xm" or "Xs".
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Summary feeds the stats cards above the repeat-leads table.
type Summary struct {
	TotalRepeatLeads     int           `json:"totalRepeatLeads"`
	UniqueRepeatContacts int           `json:"uniqueRepeatContacts"`
	AvgDaysBetween       float64       `json:"avgDaysBetween"`
	MaxDaysBetween       int           `json:"maxDaysBetween"`
	AvgLeadScoreChange   float64       `json:"avgLeadScoreChange"`
	Trends               map[Trend]int `json:"trends"`
}

// Summarize aggregates analyzed records.
func Summarize(records []models.RepeatLeadRecord) Summary {
	s := Summary{
		TotalRepeatLeads: len(records),
		Trends: map[Trend]int{
			TrendIncreasing: 0,
			TrendDecreasing: 0,
			TrendMixed:      0,
		},
	}
	if len(records) == 0 {
		return s
	}

	contacts := make(map[string]struct{})
	var days, score int
	for _, r := range records {
		contacts[r.Email] = struct{}{}
		days += r.TimeBetweenLeads
		score += r.BehaviorChange.LeadScoreChange
		if r.TimeBetweenLeads > s.MaxDaysBetween {
			s.MaxDaysBetween = r.TimeBetweenLeads
		}
		s.Trends[ClassifyTrend(r.BehaviorChange)]++
	}

	s.UniqueRepeatContacts = len(contacts)
	s.AvgDaysBetween = float64(days) / float64(len(records))
	s.AvgLeadScoreChange = float64(score) / float64(len(records))
	return s
}
