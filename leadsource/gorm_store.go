package leadsource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hubebony/models"
)

// GormStore reads and writes lead submissions in the application database.
type GormStore struct {
	DB     *gorm.DB
	Logger logrus.FieldLogger

	// PageSize is the number of rows FetchLeads reads per query.
	PageSize int
}

func NewGormStore(db *gorm.DB, logger logrus.FieldLogger) *GormStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GormStore{DB: db, Logger: logger, PageSize: MaxPageSize}
}

// FetchLeads returns every submission of the emails that reached
// filter.MinSubmissions, oldest first. It pages through the table so no
// row is left out.
func (s *GormStore) FetchLeads(ctx context.Context, filter models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	return fetchAllPages(ctx, pageSize, func(ctx context.Context, offset, limit int) ([]models.LeadSubmission, error) {
		return s.ListLeads(ctx, LeadQuery{Filter: filter, IsRepeatLead: true, Limit: limit, Offset: offset})
	})
}

// ListLeads applies the query-layer filters of the leads endpoint.
// maxDaysBetween has no per-row meaning and is not applied here.
func (s *GormStore) ListLeads(ctx context.Context, q LeadQuery) ([]models.LeadSubmission, error) {
	f := q.Filter.WithDefaults()
	query := s.DB.WithContext(ctx).Model(&models.LeadSubmission{})

	if q.IsRepeatLead {
		repeatEmails := s.DB.Model(&models.LeadSubmission{}).
			Select("email").
			Group("email").
			Having("COUNT(*) >= ?", f.MinSubmissions)
		query = query.Where("email IN (?)", repeatEmails)
	}
	if f.StartDate != nil {
		query = query.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		query = query.Where("created_at <= ?", *f.EndDate)
	}
	if f.FormType != nil {
		query = query.Where("form_type = ?", *f.FormType)
	}
	if f.LeadScoreRange != nil {
		query = query.Where("lead_score BETWEEN ? AND ?", f.LeadScoreRange.Min, f.LeadScoreRange.Max)
	}
	if f.MaxDaysBetween != nil {
		s.Logger.WithField("max_days_between", *f.MaxDaysBetween).
			Warn("maxDaysBetween filter is accepted but not enforced by the lead store")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query = query.Order("created_at ASC, id ASC").Limit(limit)
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var leads []models.LeadSubmission
	if err := query.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("fetch leads: %w", err)
	}
	return leads, nil
}

// CreateLead stores a submission and flags every submission of the same
// email as a repeat once there is more than one.
func (s *GormStore) CreateLead(ctx context.Context, lead *models.LeadSubmission) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lead).Error; err != nil {
			return fmt.Errorf("create lead: %w", err)
		}

		var count int64
		if err := tx.Model(&models.LeadSubmission{}).Where("email = ?", lead.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("count submissions: %w", err)
		}
		if count < 2 {
			return nil
		}

		lead.IsRepeatLead = true
		if err := tx.Model(&models.LeadSubmission{}).
			Where("email = ? AND is_repeat_lead = ?", lead.Email, false).
			Update("is_repeat_lead", true).Error; err != nil {
			return fmt.Errorf("flag repeat lead: %w", err)
		}
		return nil
	})
}
