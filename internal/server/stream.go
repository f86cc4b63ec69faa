package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// Stream frame limits. One frame is one operation; oversized payloads are a
// protocol violation, not a partial read.
const (
	streamMaxFrameBytes = 256 << 10
	streamWriteTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The service binds to loopback only; same-host tools are the audience.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream operation names.
const (
	StreamOpIngest = "ingest"
	StreamOpSearch = "search"
	StreamOpRecent = "recent"
	StreamOpHealth = "health"
)

// StreamRequest is one framed operation from a connected tool.
type StreamRequest struct {
	ID      string          `json:"id"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RecentPayload parameterizes the recent op.
type RecentPayload struct {
	Limit   int    `json:"limit,omitempty"`
	Project string `json:"project,omitempty"`
}

// StreamResponse answers exactly one StreamRequest, correlated by ID.
type StreamResponse struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleStream upgrades to a websocket and serves framed JSON operations.
// Editor and agent integrations hold one connection open instead of paying
// HTTP setup per captured context.
func (s *Server) handleStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadLimit(streamMaxFrameBytes)
	s.logger.Info("stream connected", zap.String("remote", conn.RemoteAddr().String()))

	ctx := c.Request().Context()
	for {
		var req StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("stream closed unexpectedly", zap.Error(err))
			}
			return nil
		}

		resp := s.dispatchStream(ctx, req)

		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("stream write failed", zap.Error(err))
			return nil
		}
	}
}

func (s *Server) dispatchStream(ctx context.Context, req StreamRequest) StreamResponse {
	switch req.Op {
	case StreamOpIngest:
		var payload backend.IngestRequest
		if err := decodeStreamPayload(req.Payload, &payload); err != nil {
			return streamResult(req.ID, nil, err)
		}
		summary, err := s.local.Ingest(ctx, payload)
		if err == nil {
			s.metrics.ObserveIngest(summary.Project)
		}
		return streamResult(req.ID, summary, err)

	case StreamOpSearch:
		var payload backend.SearchRequest
		if err := decodeStreamPayload(req.Payload, &payload); err != nil {
			return streamResult(req.ID, nil, err)
		}
		resp, err := s.local.Search(ctx, payload)
		if err == nil {
			s.metrics.ObserveSearch(len(resp.Results))
		}
		return streamResult(req.ID, resp, err)

	case StreamOpRecent:
		var payload RecentPayload
		if err := decodeStreamPayload(req.Payload, &payload); err != nil {
			return streamResult(req.ID, nil, err)
		}
		list, err := s.local.Recent(ctx, payload.Limit, payload.Project)
		return streamResult(req.ID, list, err)

	case StreamOpHealth:
		status, err := s.local.Health(ctx)
		return streamResult(req.ID, status, err)

	default:
		return StreamResponse{
			ID:    req.ID,
			Error: fmt.Sprintf("unknown op %q", req.Op),
			Code:  backend.CodeValidation,
		}
	}
}

func decodeStreamPayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", domain.ErrValidation, err)
	}
	return nil
}

func streamResult(id string, data any, err error) StreamResponse {
	if err != nil {
		return StreamResponse{ID: id, Error: err.Error(), Code: backend.CodeFor(err)}
	}
	return StreamResponse{ID: id, OK: true, Data: data}
}
