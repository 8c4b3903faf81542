package analytics

import (
	"errors"

	"hubebony/models"
)

// RepeatLeadView is a record as sent to the dashboard table.
type RepeatLeadView struct {
	models.RepeatLeadRecord
	Trend           Trend  `json:"trend"`
	TimeOnSiteLabel string `json:"timeOnSiteLabel"`
}

// Report is one full analysis run.
type Report struct {
	Leads    []RepeatLeadView `json:"leads"`
	Summary  Summary          `json:"summary"`
	Warnings []string         `json:"warnings,omitempty"`

	skipped []*InvalidTimestampError
}

// BuildReport analyzes submissions from scratch. Skipped groups become
// warnings rather than failing the report.
func BuildReport(submissions []models.LeadSubmission) Report {
	records, err := Analyze(submissions)

	views := make([]RepeatLeadView, 0, len(records))
	for _, r := range records {
		views = append(views, RepeatLeadView{
			RepeatLeadRecord: r,
			Trend:            ClassifyTrend(r.BehaviorChange),
			TimeOnSiteLabel:  FormatDuration(r.TimeOnSite),
		})
	}

	report := Report{
		Leads:   views,
		Summary: Summarize(records),
		skipped: skippedGroups(err),
	}
	report.Warnings = warningsOf(report.skipped)
	return report
}

// ForEmail keeps only the leads of one email and recomputes the summary.
func (r Report) ForEmail(email string) Report {
	out := Report{Leads: []RepeatLeadView{}}
	var records []models.RepeatLeadRecord
	for _, v := range r.Leads {
		if v.Email == email {
			out.Leads = append(out.Leads, v)
			records = append(records, v.RepeatLeadRecord)
		}
	}
	for _, s := range r.skipped {
		if s.Email == email {
			out.skipped = append(out.skipped, s)
		}
	}
	out.Summary = Summarize(records)
	out.Warnings = warningsOf(out.skipped)
	return out
}

func skippedGroups(err error) []*InvalidTimestampError {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	var out []*InvalidTimestampError
	for _, e := range errs {
		var ts *InvalidTimestampError
		if errors.As(e, &ts) {
			out = append(out, ts)
		}
	}
	return out
}

func warningsOf(skipped []*InvalidTimestampError) []string {
	var out []string
	for _, s := range skipped {
		out = append(out, s.Error())
	}
	return out
}
