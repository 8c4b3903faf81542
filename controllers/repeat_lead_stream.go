package controller

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"hubebony/analytics"
	"hubebony/models"
	"hubebony/utils"
)

// jsonConn is the part of a websocket connection the stream uses.
type jsonConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

type streamRequest struct {
	RequestID string                  `json:"requestId"`
	Filter    models.RepeatLeadFilter `json:"filter"`
}

type streamResponse struct {
	RequestID string            `json:"requestId"`
	Status    string            `json:"status"` // loading, done, error
	Error     string            `json:"error,omitempty"`
	Data      *analytics.Report `json:"data,omitempty"`
}

// StreamRepeatLeads serves the live repeat-leads view. Every filter message
// supersedes the previous one: its fetch is cancelled and its result, if it
// still arrives, is dropped.
func (rc *RepeatLeadController) StreamRepeatLeads(c *websocket.Conn) {
	defer c.Close()
	rc.serveStream(c)
}

func (rc *RepeatLeadController) serveStream(conn jsonConn) {
	var (
		writeMu sync.Mutex
		stateMu sync.Mutex
		latest  string
		cancel  context.CancelFunc = func() {}
		wg      sync.WaitGroup
	)
	defer func() {
		stateMu.Lock()
		cancel()
		stateMu.Unlock()
		wg.Wait()
	}()

	write := func(resp streamResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			rc.Logger.WithError(err).Debug("Repeat-lead stream write failed")
		}
	}
	isLatest := func(id string) bool {
		stateMu.Lock()
		defer stateMu.Unlock()
		return id == latest
	}

	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		req.Filter = req.Filter.WithDefaults()
		if err := utils.ValidateStruct(req.Filter); err != nil {
			write(streamResponse{RequestID: req.RequestID, Status: "error", Error: err.Error()})
			continue
		}

		stateMu.Lock()
		cancel()
		ctx, cancelReq := context.WithCancel(context.Background())
		cancel = cancelReq
		latest = req.RequestID
		stateMu.Unlock()

		write(streamResponse{RequestID: req.RequestID, Status: "loading"})

		wg.Add(1)
		go func(ctx context.Context, req streamRequest) {
			defer wg.Done()
			report, err := rc.Analyze(ctx, req.Filter)
			if ctx.Err() != nil || !isLatest(req.RequestID) {
				rc.Logger.WithField("request_id", req.RequestID).Debug("Dropping superseded repeat-lead result")
				return
			}
			if err != nil {
				rc.Logger.WithFields(logrus.Fields{
					"request_id": req.RequestID,
					"error":      err.Error(),
				}).Warn("Repeat-lead stream fetch failed")
				write(streamResponse{RequestID: req.RequestID, Status: "error", Error: "Failed to fetch leads"})
				return
			}
			write(streamResponse{RequestID: req.RequestID, Status: "done", Data: &report})
		}(ctx, req)
	}
}
