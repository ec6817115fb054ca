package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"

	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/pkg/models"
)

// ──────────────────────────────────────────────────────────────────
// Reconcile Progress Stream
//
// One search per connection. The client sends a ReconcileRequest frame,
// the server answers with a progress frame per combination size and then
// a single result or error frame, and closes.
//
// {"type":"cancel"} or a dropped connection cancels the running search.
// ──────────────────────────────────────────────────────────────────

const (
	writeWait          = 5 * time.Second
	requestReadTimeout = 30 * time.Second
)

// newUpgrader applies ALLOWED_ORIGINS to WebSocket handshakes, which
// browsers do not subject to CORS. Requests without an Origin header come
// from non-browser clients and are accepted; an empty list accepts any
// origin, as CORS does.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// stream is the write side of one reconcile WebSocket. Only the handler
// goroutine writes; the watcher goroutine only reads.
type stream struct {
	conn *websocket.Conn
}

func (s *stream) send(f models.StreamFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

func (s *stream) sendError(body models.ErrorBody) error {
	return s.send(models.StreamFrame{Type: models.FrameError, Error: &body})
}

func (s *stream) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// handleReconcileStream runs one search over a WebSocket. The client sends a
// single ReconcileRequest frame and receives one progress frame per
// combination size followed by a result or error frame. Sending
// {"type":"cancel"} or disconnecting cancels the search.
func (h *APIHandler) handleReconcileStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &stream{conn: conn}
	defer s.close()
	reqID := c.GetString(ctxRequestID)

	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	var in models.ReconcileRequest
	if err := conn.ReadJSON(&in); err != nil {
		s.reject(h, err, bindErrorBody)
		return
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		s.reject(h, err, errorBody)
		return
	}
	ps, err := h.prepare(in)
	if err != nil {
		s.reject(h, err, errorBody)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Any further frame from the client is either a cancel request or a
	// read error from a disconnect; both end the search.
	go func() {
		defer cancel()
		for {
			var f models.StreamFrame
			if err := conn.ReadJSON(&f); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Str("request_id", reqID).Msg("reconcile stream closed")
				}
				return
			}
			if f.Type == models.FrameCancel {
				return
			}
		}
	}()

	sink := matcher.ProgressFunc(func(p matcher.Progress) {
		err := s.send(models.StreamFrame{
			Type: models.FrameProgress,
			Progress: &models.ProgressEvent{
				Size:         p.Size,
				Fraction:     p.Fraction,
				Label:        p.Label,
				Combinations: p.Combinations,
			},
		})
		if err != nil {
			cancel()
		}
	})

	res, err := h.run(ctx, ps, sink)
	if err != nil {
		s.reject(h, err, errorBody)
		return
	}

	resp := buildResponse(reqID, ps, res)
	if err := s.send(models.StreamFrame{Type: models.FrameResult, Result: &resp}); err != nil {
		h.log.Debug().Err(err).Str("request_id", reqID).Msg("result frame not delivered")
	}
}

func (s *stream) reject(h *APIHandler, err error, classify func(error) (int, models.ErrorBody)) {
	_, body := classify(err)
	h.observeInvalid(body)
	_ = s.sendError(body)
}
