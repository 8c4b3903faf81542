// Package tracking records dashboard analytics events. Components receive an
// EventSink at construction; a missing sink makes every call a no-op.
package tracking

import (
	"context"
	"time"

	"hubebony/models"
)

// Session describes the sink's tracking session. It is shared by every
// request the process serves; the acting user travels in the context.
type Session struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// EventSink receives analytics events. Events are attributed to the user
// stored in ctx by WithUserID, if any.
type EventSink interface {
	TrackEvent(ctx context.Context, name string, props map[string]interface{})
	TrackLead(ctx context.Context, lead models.LeadSubmission)
	TrackCustomEvent(ctx context.Context, category, action string, props map[string]interface{})
	SessionInfo() Session
}

type userIDKey struct{}

// WithUserID returns a copy of ctx whose events are attributed to userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the user set by WithUserID, or "".
func UserIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// Safe returns sink, or a no-op sink when sink is nil.
func Safe(sink EventSink) EventSink {
	if sink == nil {
		return Nop{}
	}
	return sink
}

// Nop discards every event.
type Nop struct{}

func (Nop) TrackEvent(context.Context, string, map[string]interface{})               {}
func (Nop) TrackLead(context.Context, models.LeadSubmission)                         {}
func (Nop) TrackCustomEvent(context.Context, string, string, map[string]interface{}) {}
func (Nop) SessionInfo() Session                                                     { return Session{} }

// Multi fans every event out to several sinks. SessionInfo comes from the
// first sink.
type Multi []EventSink

func NewMulti(sinks ...EventSink) Multi {
	var out Multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) TrackEvent(ctx context.Context, name string, props map[string]interface{}) {
	for _, s := range m {
		s.TrackEvent(ctx, name, props)
	}
}

func (m Multi) TrackLead(ctx context.Context, lead models.LeadSubmission) {
	for _, s := range m {
		s.TrackLead(ctx, lead)
	}
}

func (m Multi) TrackCustomEvent(ctx context.Context, category, action string, props map[string]interface{}) {
	for _, s := range m {
		s.TrackCustomEvent(ctx, category, action, props)
	}
}

func (m Multi) SessionInfo() Session {
	if len(m) == 0 {
		return Session{}
	}
	return m[0].SessionInfo()
}

// Event is the serialized form written by sinks that persist events.
type Event struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Category   string                 `json:"category,omitempty"`
	SessionID  string                 `json:"sessionId"`
	UserID     string                 `json:"userId,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func leadProps(lead models.LeadSubmission) map[string]interface{} {
	props := map[string]interface{}{
		"lead_id":    lead.ID,
		"email":      lead.Email,
		"lead_score": lead.LeadScore,
	}
	if lead.FormType != nil {
		props["form_type"] = *lead.FormType
	}
	return props
}
