package controller

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"hubebony/analytics"
	"hubebony/leadsource"
	"hubebony/middleware"
	"hubebony/models"
	"hubebony/tracking"
	"hubebony/utils"
)

type RepeatLeadController struct {
	Source leadsource.Source
	Sink   tracking.EventSink
	Logger logrus.FieldLogger
}

func NewRepeatLeadController(source leadsource.Source, sink tracking.EventSink, logger logrus.FieldLogger) *RepeatLeadController {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RepeatLeadController{
		Source: source,
		Sink:   tracking.Safe(sink),
		Logger: logger,
	}
}

// GetRepeatLeads fetches the leads matching the query filters and returns
// the analyzed repeat leads with summary stats.
func (rc *RepeatLeadController) GetRepeatLeads(c *fiber.Ctx) error {
	filter, err := parseRepeatLeadFilter(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", err)
	}

	report, err := rc.Analyze(c.UserContext(), filter)
	if err != nil {
		return rc.fetchError(c, err)
	}

	rc.trackAnalysis(c, filter, report)
	return c.JSON(utils.SuccessResponse(report))
}

// GetRepeatLeadsForEmail returns the repeat leads of a single email.
func (rc *RepeatLeadController) GetRepeatLeadsForEmail(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil || email == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email", err)
	}

	filter, err := parseRepeatLeadFilter(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", err)
	}

	report, err := rc.Analyze(c.UserContext(), filter)
	if err != nil {
		return rc.fetchError(c, err)
	}

	single := report.ForEmail(email)
	if len(single.Leads) == 0 && len(single.Warnings) == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No repeat leads for this email", nil)
	}
	return c.JSON(utils.SuccessResponse(single))
}

// Analyze fetches fresh leads and analyzes them. Nothing is cached between
// calls.
func (rc *RepeatLeadController) Analyze(ctx context.Context, filter models.RepeatLeadFilter) (analytics.Report, error) {
	started := time.Now()
	leads, err := rc.Source.FetchLeads(ctx, filter)
	if err != nil {
		return analytics.Report{}, err
	}

	report := analytics.BuildReport(leads)
	log := rc.Logger.WithFields(logrus.Fields{
		"submissions":  len(leads),
		"repeat_leads": len(report.Leads),
		"duration_ms":  time.Since(started).Milliseconds(),
	})
	if len(report.Warnings) > 0 {
		log.WithField("skipped_groups", len(report.Warnings)).Warn("Repeat-lead analysis skipped groups with invalid timestamps")
	} else {
		log.Debug("Repeat-lead analysis completed")
	}
	return report, nil
}

func (rc *RepeatLeadController) fetchError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		return utils.ErrorResponse(c, fiber.StatusRequestTimeout, "Request cancelled", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return utils.ErrorResponse(c, fiber.StatusGatewayTimeout, "Lead source timed out", err)
	case errors.Is(err, leadsource.ErrUpstream):
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Lead source unavailable", err)
	}
	utils.LogError("repeat_leads_fetch", err, map[string]interface{}{
		"path": c.Path(),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
}

func (rc *RepeatLeadController) trackAnalysis(c *fiber.Ctx, filter models.RepeatLeadFilter, report analytics.Report) {
	props := map[string]interface{}{
		"repeat_leads":    report.Summary.TotalRepeatLeads,
		"unique_contacts": report.Summary.UniqueRepeatContacts,
		"min_submissions": filter.MinSubmissions,
	}
	if filter.FormType != nil {
		props["form_type"] = *filter.FormType
	}
	rc.Sink.TrackEvent(trackingContext(c), "repeat_leads_analyzed", props)
}

// trackingContext attributes events to the authenticated user of c.
func trackingContext(c *fiber.Ctx) context.Context {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	return tracking.WithUserID(c.UserContext(), userID)
}

func parseRepeatLeadFilter(c *fiber.Ctx) (models.RepeatLeadFilter, error) {
	q, err := leadsource.ParseLeadQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return models.RepeatLeadFilter{}, err
	}
	if err := utils.ValidateStruct(q.Filter); err != nil {
		return models.RepeatLeadFilter{}, err
	}
	return q.Filter, nil
}
