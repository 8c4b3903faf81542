package controller

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"hubebony/leadsource"
	"hubebony/models"
	"hubebony/tracking"
	"hubebony/utils"
)

// LeadStore is the persistence the lead endpoints need.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *models.LeadSubmission) error
	ListLeads(ctx context.Context, q leadsource.LeadQuery) ([]models.LeadSubmission, error)
}

type LeadController struct {
	Store  LeadStore
	Sink   tracking.EventSink
	Logger logrus.FieldLogger
}

func NewLeadController(store LeadStore, sink tracking.EventSink, logger logrus.FieldLogger) *LeadController {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LeadController{
		Store:  store,
		Sink:   tracking.Safe(sink),
		Logger: logger,
	}
}

type createLeadInput struct {
	Email           string     `json:"email" validate:"required,max=254"`
	Name            *string    `json:"name" validate:"omitempty,max=200"`
	Phone           *string    `json:"phone" validate:"omitempty,max=40"`
	Company         *string    `json:"company" validate:"omitempty,max=200"`
	Message         *string    `json:"message" validate:"omitempty,max=5000"`
	FormType        *string    `json:"formType" validate:"omitempty,max=100"`
	CreatedAt       *time.Time `json:"createdAt"`
	LeadScore       int        `json:"leadScore" validate:"gte=0,lte=100"`
	PagesVisited    int        `json:"pagesVisited" validate:"gte=0"`
	TimeOnSite      int        `json:"timeOnSite" validate:"gte=0"`
	EventsTriggered int        `json:"eventsTriggered" validate:"gte=0"`
}

// CreateLead records a form submission. The email is stored exactly as
// received because it is the identity key for repeat detection.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input createLeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	input.Email = strings.TrimSpace(input.Email)
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailFormat(input.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead := models.LeadSubmission{
		Email:           input.Email,
		Name:            input.Name,
		Phone:           input.Phone,
		Company:         input.Company,
		Message:         input.Message,
		FormType:        input.FormType,
		LeadScore:       input.LeadScore,
		PagesVisited:    input.PagesVisited,
		TimeOnSite:      input.TimeOnSite,
		EventsTriggered: input.EventsTriggered,
	}
	if input.CreatedAt != nil {
		lead.CreatedAt = input.CreatedAt.UTC()
	}

	if err := lc.Store.CreateLead(c.UserContext(), &lead); err != nil {
		utils.LogError("lead_create", err, map[string]interface{}{"email": lead.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	lc.Logger.WithFields(logrus.Fields{
		"lead_id":        lead.ID,
		"is_repeat_lead": lead.IsRepeatLead,
	}).Info("Lead submission stored")
	lc.Sink.TrackLead(trackingContext(c), lead)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads lists submissions in the {success, data: {leads}} shape the
// repeat-lead analysis consumes.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	q, err := leadsource.ParseLeadQuery(func(key string) string { return c.Query(key) })
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", err)
	}
	if err := utils.ValidateStruct(q.Filter); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filter", err)
	}

	leads, err := lc.Store.ListLeads(c.UserContext(), q)
	if err != nil {
		utils.LogError("lead_list", err, map[string]interface{}{"path": c.Path()})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}
	if leads == nil {
		leads = []models.LeadSubmission{}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"leads": leads,
	}))
}
