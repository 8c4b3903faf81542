package worker

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hubebony/analytics"
	"hubebony/leadsource"
	"hubebony/models"
	"hubebony/tracking"
)

// DigestWorker periodically analyzes the trailing window of leads and
// publishes the summary as a tracking event.
type DigestWorker struct {
	Source     leadsource.Source
	Sink       tracking.EventSink
	Logger     logrus.FieldLogger
	Interval   time.Duration
	WindowDays int

	// StartDelay lets the server come up before the first run.
	StartDelay time.Duration
	now        func() time.Time
}

func NewDigestWorker(source leadsource.Source, sink tracking.EventSink, interval time.Duration, windowDays int, logger logrus.FieldLogger) *DigestWorker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &DigestWorker{
		Source:     source,
		Sink:       tracking.Safe(sink),
		Logger:     logger.WithField("worker", "digest"),
		Interval:   interval,
		WindowDays: windowDays,
		StartDelay: 10 * time.Second,
		now:        time.Now,
	}
}

func (dw *DigestWorker) Start(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(dw.StartDelay):
	}

	dw.Logger.WithField("interval", dw.Interval.String()).Info("Digest worker started")

	ticker := time.NewTicker(dw.Interval)
	defer ticker.Stop()

	dw.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			dw.Logger.Info("Digest worker shutting down...")
			return
		case <-ticker.C:
			dw.RunOnce(ctx)
		}
	}
}

// RunOnce builds one digest. Failures are logged and the next tick retries.
func (dw *DigestWorker) RunOnce(ctx context.Context) {
	filter := models.RepeatLeadFilter{}.WithDefaults()
	if dw.WindowDays > 0 {
		start := dw.now().UTC().AddDate(0, 0, -dw.WindowDays)
		filter.StartDate = &start
	}

	leads, err := dw.Source.FetchLeads(ctx, filter)
	if err != nil {
		if ctx.Err() == nil {
			dw.Logger.WithError(err).Warn("Digest fetch failed")
		}
		return
	}

	report := analytics.BuildReport(leads)
	s := report.Summary
	props := map[string]interface{}{
		"window_days":            dw.WindowDays,
		"submissions":            len(leads),
		"total_repeat_leads":     s.TotalRepeatLeads,
		"unique_repeat_contacts": s.UniqueRepeatContacts,
		"avg_days_between":       s.AvgDaysBetween,
		"max_days_between":       s.MaxDaysBetween,
		"avg_lead_score_change":  s.AvgLeadScoreChange,
		"skipped_groups":         len(report.Warnings),
	}
	for trend, n := range s.Trends {
		props["trend_"+strings.ToLower(string(trend))] = n
	}

	dw.Sink.TrackCustomEvent(ctx, "leads", "repeat_lead_digest", props)
	dw.Logger.WithFields(logrus.Fields(props)).Info("Repeat-lead digest published")
}
