package tracking

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hubebony/models"
)

// session identifies the events of one sink instance.
type session struct {
	id      string
	started time.Time
}

func newSession() *session {
	return &session{id: uuid.NewString(), started: time.Now()}
}

func (s *session) SessionInfo() Session {
	return Session{SessionID: s.id, StartedAt: s.started}
}

// LogSink writes events as structured log entries and leaves a Sentry
// breadcrumb for each one.
type LogSink struct {
	*session
	Logger logrus.FieldLogger
}

func NewLogSink(logger logrus.FieldLogger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{session: newSession(), Logger: logger}
}

func (s *LogSink) TrackEvent(ctx context.Context, name string, props map[string]interface{}) {
	s.emit(ctx, "event", name, "", props)
}

func (s *LogSink) TrackLead(ctx context.Context, lead models.LeadSubmission) {
	s.emit(ctx, "lead", "lead_submitted", "leads", leadProps(lead))
}

func (s *LogSink) TrackCustomEvent(ctx context.Context, category, action string, props map[string]interface{}) {
	s.emit(ctx, "custom", action, category, props)
}

func (s *LogSink) emit(ctx context.Context, kind, name, category string, props map[string]interface{}) {
	info := s.SessionInfo()
	log := s.Logger.WithFields(logrus.Fields{
		"event_type": kind,
		"event":      name,
		"session_id": info.SessionID,
	})
	if category != "" {
		log = log.WithField("category", category)
	}
	if userID := UserIDFrom(ctx); userID != "" {
		log = log.WithField("user_id", userID)
	}
	for k, v := range props {
		log = log.WithField(k, v)
	}
	log.Info("Event tracked")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  name,
		Data:      props,
		Timestamp: time.Now(),
	})
}
