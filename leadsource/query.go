package leadsource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hubebony/models"
)

// Query parameter names shared by the leads endpoint and its clients.
const (
	ParamIsRepeatLead   = "isRepeatLead"
	ParamStartDate      = "startDate"
	ParamEndDate        = "endDate"
	ParamMinSubmissions = "minSubmissions"
	ParamMaxDaysBetween = "maxDaysBetween"
	ParamFormType       = "formType"
	ParamLeadScoreRange = "leadScoreRange"
	ParamLeadScoreMin   = "leadScoreMin"
	ParamLeadScoreMax   = "leadScoreMax"
	ParamLimit          = "limit"
	ParamOffset         = "offset"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 5000
	// MaxPageSize is the largest page the leads endpoint returns.
	MaxPageSize  = 50000
)

// LeadQuery is a filter as received by the leads endpoint. Rows are
// ordered by createdAt then id, so Limit and Offset page through them.
type LeadQuery struct {
	Filter       models.RepeatLeadFilter
	IsRepeatLead bool
	Limit        int
	Offset       int
}

// Values encodes the query for the leads endpoint.
func (q LeadQuery) Values() url.Values {
	f := q.Filter.WithDefaults()
	v := url.Values{}
	v.Set(ParamIsRepeatLead, strconv.FormatBool(q.IsRepeatLead))
	v.Set(ParamMinSubmissions, strconv.Itoa(f.MinSubmissions))
	if f.StartDate != nil {
		v.Set(ParamStartDate, f.StartDate.UTC().Format(time.RFC3339))
	}
	if f.EndDate != nil {
		v.Set(ParamEndDate, f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.MaxDaysBetween != nil {
		v.Set(ParamMaxDaysBetween, strconv.Itoa(*f.MaxDaysBetween))
	}
	if f.FormType != nil {
		v.Set(ParamFormType, *f.FormType)
	}
	if f.LeadScoreRange != nil {
		v.Set(ParamLeadScoreMin, strconv.Itoa(f.LeadScoreRange.Min))
		v.Set(ParamLeadScoreMax, strconv.Itoa(f.LeadScoreRange.Max))
	}
	if q.Limit > 0 {
		v.Set(ParamLimit, strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set(ParamOffset, strconv.Itoa(q.Offset))
	}
	return v
}

// ParseLeadQuery reads a LeadQuery from query parameters. get returns ""
// for missing keys. Dates are RFC 3339 timestamps or YYYY-MM-DD days; a
// day-only endDate covers the whole day.
func ParseLeadQuery(get func(key string) string) (LeadQuery, error) {
	var (
		q   LeadQuery
		err error
	)

	if raw := get(ParamIsRepeatLead); raw != "" {
		if q.IsRepeatLead, err = strconv.ParseBool(raw); err != nil {
			return q, fmt.Errorf("%s: %w", ParamIsRepeatLead, err)
		}
	}
	if q.Filter.StartDate, err = parseDate(get(ParamStartDate), false); err != nil {
		return q, fmt.Errorf("%s: %w", ParamStartDate, err)
	}
	if q.Filter.EndDate, err = parseDate(get(ParamEndDate), true); err != nil {
		return q, fmt.Errorf("%s: %w", ParamEndDate, err)
	}
	if q.Filter.StartDate != nil && q.Filter.EndDate != nil && q.Filter.EndDate.Before(*q.Filter.StartDate) {
		return q, fmt.Errorf("%s must not be before %s", ParamEndDate, ParamStartDate)
	}
	if raw := get(ParamMinSubmissions); raw != "" {
		if q.Filter.MinSubmissions, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("%s: %w", ParamMinSubmissions, err)
		}
	}
	if q.Filter.MaxDaysBetween, err = parseOptionalInt(get(ParamMaxDaysBetween)); err != nil {
		return q, fmt.Errorf("%s: %w", ParamMaxDaysBetween, err)
	}
	if raw := strings.TrimSpace(get(ParamFormType)); raw != "" && raw != "all" {
		q.Filter.FormType = &raw
	}
	if q.Filter.LeadScoreRange, err = parseScoreRange(get); err != nil {
		return q, err
	}
	if q.Limit, err = parseLimit(get(ParamLimit)); err != nil {
		return q, fmt.Errorf("%s: %w", ParamLimit, err)
	}
	if raw := get(ParamOffset); raw != "" {
		if q.Offset, err = strconv.Atoi(raw); err != nil {
			return q, fmt.Errorf("%s: %w", ParamOffset, err)
		}
		if q.Offset < 0 {
			return q, fmt.Errorf("%s must not be negative", ParamOffset)
		}
	}

	q.Filter = q.Filter.WithDefaults()
	return q, nil
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseOptionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseScoreRange accepts leadScoreRange=min,max or the split
// leadScoreMin/leadScoreMax pair.
func parseScoreRange(get func(string) string) (*models.ScoreRange, error) {
	minRaw, maxRaw := get(ParamLeadScoreMin), get(ParamLeadScoreMax)
	if joined := get(ParamLeadScoreRange); joined != "" {
		parts := strings.Split(joined, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s must be two comma separated numbers", ParamLeadScoreRange)
		}
		minRaw, maxRaw = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}

	r := models.ScoreRange{Min: 0, Max: 100}
	var err error
	if minRaw != "" {
		if r.Min, err = strconv.Atoi(minRaw); err != nil {
			return nil, fmt.Errorf("%s: %w", ParamLeadScoreMin, err)
		}
	}
	if maxRaw != "" {
		if r.Max, err = strconv.Atoi(maxRaw); err != nil {
			return nil, fmt.Errorf("%s: %w", ParamLeadScoreMax, err)
		}
	}
	return &r, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	switch {
	case v <= 0:
		return defaultLimit, nil
	case v > MaxPageSize:
		return MaxPageSize, nil
	}
	return v, nil
}
