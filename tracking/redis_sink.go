package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"hubebony/models"
)

// RedisSink appends events as JSON to a capped Redis list so other
// services can consume them.
type RedisSink struct {
	*session
	client *redis.Client
	key    string
	maxLen int64
	logger logrus.FieldLogger
}

func NewRedisSink(client *redis.Client, key string, maxLen int64, logger logrus.FieldLogger) *RedisSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisSink{
		session: newSession(),
		client:  client,
		key:     key,
		maxLen:  maxLen,
		logger:  logger,
	}
}

func (s *RedisSink) TrackEvent(ctx context.Context, name string, props map[string]interface{}) {
	s.push(ctx, Event{Type: "event", Name: name, Properties: props})
}

func (s *RedisSink) TrackLead(ctx context.Context, lead models.LeadSubmission) {
	s.push(ctx, Event{Type: "lead", Name: "lead_submitted", Category: "leads", Properties: leadProps(lead)})
}

func (s *RedisSink) TrackCustomEvent(ctx context.Context, category, action string, props map[string]interface{}) {
	s.push(ctx, Event{Type: "custom", Name: action, Category: category, Properties: props})
}

func (s *RedisSink) push(ctx context.Context, ev Event) {
	ev.SessionID = s.id
	ev.UserID = UserIDFrom(ctx)
	ev.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WithError(err).WithField("event", ev.Name).Warn("Failed to encode event")
		return
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, payload)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).WithField("event", ev.Name).Warn("Failed to publish event")
	}
}
