package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/pkg/logger"
)

// eventStatus is the first message on every stream.
const eventStatus = "status"

// handleEvents upgrades to a websocket and streams service events until the
// client goes away or the service stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.CloseNow()

	events, cancel := s.deps.Subscribe()
	defer cancel()

	// Clients only listen; CloseRead handles their control frames.
	ctx := conn.CloseRead(r.Context())

	if st, err := s.deps.Status(ctx); err == nil {
		if err := s.write(ctx, conn, service.Event{Type: eventStatus, At: time.Now(), Data: st}); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "service stopped")
				return
			}
			if err := s.write(ctx, conn, ev); err != nil {
				s.logger.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, ev service.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
