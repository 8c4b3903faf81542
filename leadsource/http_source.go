package leadsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"hubebony/models"
)

const leadsPath = "/api/v1/leads"

// HTTPSource fetches leads from a remote leads endpoint answering
// {success, data: {leads: [...]}}.
type HTTPSource struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *fasthttp.Client
	Logger  logrus.FieldLogger

	// PageSize must not exceed the endpoint's own page cap, or the first
	// capped page reads as the last one.
	PageSize int
}

func NewHTTPSource(baseURL, token string, timeout time.Duration, logger logrus.FieldLogger) *HTTPSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPSource{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		Timeout:  timeout,
		Logger:   logger,
		PageSize: MaxPageSize,
		Client: &fasthttp.Client{
			Name:                "hubebony-leadsource",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type leadsEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Leads []wireLead `json:"leads"`
	} `json:"data"`
}

// wireLead keeps createdAt as text so one bad timestamp does not fail the
// whole payload; it is reported later by the analyzer instead.
type wireLead struct {
	models.LeadSubmission
	CreatedAt string `json:"createdAt"`
}

// FetchLeads always asks for repeat leads only and pages until the
// endpoint returns a short page.
func (s *HTTPSource) FetchLeads(ctx context.Context, filter models.RepeatLeadFilter) ([]models.LeadSubmission, error) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	return fetchAllPages(ctx, pageSize, func(ctx context.Context, offset, limit int) ([]models.LeadSubmission, error) {
		return s.fetchPage(ctx, LeadQuery{Filter: filter, IsRepeatLead: true, Limit: limit, Offset: offset})
	})
}

func (s *HTTPSource) fetchPage(ctx context.Context, q LeadQuery) ([]models.LeadSubmission, error) {
	uri := s.BaseURL + leadsPath + "?" + q.Values().Encode()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	if err := s.do(ctx, req, resp); err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("GET %s: %w", leadsPath, ctx.Err())
		case errors.Is(err, fasthttp.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("GET %s: %w", leadsPath, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: GET %s: %v", ErrUpstream, leadsPath, err)
	}

	status := resp.StatusCode()
	var envelope leadsEnvelope
	decodeErr := json.Unmarshal(resp.Body(), &envelope)
	if status < 200 || status >= 300 {
		msg := envelope.Error
		if msg == "" {
			msg = fasthttp.StatusMessage(status)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, status, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode leads response: %w", decodeErr)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, envelope.Error)
	}

	leads := make([]models.LeadSubmission, 0, len(envelope.Data.Leads))
	for _, w := range envelope.Data.Leads {
		lead := w.LeadSubmission
		lead.CreatedAt = parseTimestamp(w.CreatedAt)
		if lead.CreatedAt.IsZero() {
			s.Logger.WithFields(logrus.Fields{
				"lead_id":    lead.ID,
				"created_at": w.CreatedAt,
			}).Warn("Lead has an unparseable createdAt")
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// do runs the request with the earlier of the configured timeout and the
// context deadline. A cancelled context abandons the wait.
func (s *HTTPSource) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	type result struct {
		resp *fasthttp.Response
		err  error
	}
	done := make(chan result, 1)

	// The goroutine works on its own copies so the caller can release req
	// and resp as soon as it returns.
	localReq := fasthttp.AcquireRequest()
	req.CopyTo(localReq)
	go func() {
		localResp := fasthttp.AcquireResponse()
		err := s.Client.DoTimeout(localReq, localResp, timeout)
		fasthttp.ReleaseRequest(localReq)
		done <- result{resp: localResp, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		defer fasthttp.ReleaseResponse(r.resp)
		if r.err != nil {
			return r.err
		}
		r.resp.CopyTo(resp)
		return nil
	}
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
