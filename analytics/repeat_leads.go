// Package analytics derives repeat-lead records from raw lead submissions.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hubebony/models"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// InvalidTimestampError reports a submission whose createdAt could not be
// used for ordering. The whole email group is left out of the result.
type InvalidTimestampError struct {
	Email  string
	LeadID string
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid createdAt on lead %s (%s)", e.LeadID, e.Email)
}

// trackedField reads one of the content fields compared between submissions.
type trackedField struct {
	name string
	get  func(models.LeadSubmission) *string
}

var trackedFields = []trackedField{
	{"name", func(l models.LeadSubmission) *string { return l.Name }},
	{"phone", func(l models.LeadSubmission) *string { return l.Phone }},
	{"company", func(l models.LeadSubmission) *string { return l.Company }},
	{"message", func(l models.LeadSubmission) *string { return l.Message }},
	{"formType", func(l models.LeadSubmission) *string { return l.FormType }},
}

// Analyze groups submissions by email and returns one record for every
// submission after the first of each email, compared with the submission
// right before it. Emails are emitted in the order they first appear in
// submissions; records of one email are in ascending createdAt order.
//
// Groups holding a submission without a usable createdAt are skipped and
// reported through the returned error, which joins one
// *InvalidTimestampError per skipped group. Records of the remaining
// groups are returned regardless.
func Analyze(submissions []models.LeadSubmission) ([]models.RepeatLeadRecord, error) {
	groups, order := groupByEmail(submissions)

	var (
		records []models.RepeatLeadRecord
		errs    []error
	)
	for _, email := range order {
		group := groups[email]
		if len(group) < 2 {
			continue
		}
		if bad := firstInvalid(group); bad != nil {
			errs = append(errs, &InvalidTimestampError{Email: email, LeadID: bad.ID})
			continue
		}
		records = append(records, analyzeGroup(group)...)
	}
	return records, errors.Join(errs...)
}

func groupByEmail(submissions []models.LeadSubmission) (map[string][]models.LeadSubmission, []string) {
	groups := make(map[string][]models.LeadSubmission)
	var order []string
	for _, s := range submissions {
		if _, seen := groups[s.Email]; !seen {
			order = append(order, s.Email)
		}
		groups[s.Email] = append(groups[s.Email], s)
	}
	return groups, order
}

func firstInvalid(group []models.LeadSubmission) *models.LeadSubmission {
	for i := range group {
		if group[i].CreatedAt.IsZero() {
			return &group[i]
		}
	}
	return nil
}

// analyzeGroup sorts a copy of group and builds its repeat records.
func analyzeGroup(group []models.LeadSubmission) []models.RepeatLeadRecord {
	sorted := make([]models.LeadSubmission, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	history := make([]models.SubmissionSummary, len(sorted))
	for i, s := range sorted {
		history[i] = s.Summary()
	}

	first := sorted[0]
	records := make([]models.RepeatLeadRecord, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		current, previous := sorted[i], sorted[i-1]
		records = append(records, models.NewRepeatLeadRecord(current, models.RepeatLeadDerived{
			OriginalLeadID:    first.ID,
			PreviousLeadCount: i,
			TimeBetweenLeads:  DaysBetween(previous.CreatedAt, current.CreatedAt),
			Changes:           DiffFields(previous, current),
			BehaviorChange:    DiffBehavior(previous, current),
			AllSubmissions:    history,
		}))
	}
	return records
}

// DaysBetween returns the whole days from earlier to later, truncated
// toward zero.
func DaysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Milliseconds() / msPerDay)
}

// DiffFields returns the tracked content fields whose value differs between
// previous and current. An absent field differs from any present value.
func DiffFields(previous, current models.LeadSubmission) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)
	for _, f := range trackedFields {
		old, cur := f.get(previous), f.get(current)
		if !sameValue(old, cur) {
			changes[f.name] = models.FieldChange{Old: old, New: cur}
		}
	}
	return changes
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DiffBehavior subtracts previous counters from current ones.
func DiffBehavior(previous, current models.LeadSubmission) models.BehaviorChange {
	return models.BehaviorChange{
		TimeOnSiteChange:      current.TimeOnSite - previous.TimeOnSite,
		PagesVisitedChange:    current.PagesVisited - previous.PagesVisited,
		EventsTriggeredChange: current.EventsTriggered - previous.EventsTriggered,
		LeadScoreChange:       current.LeadScore - previous.LeadScore,
	}
}
