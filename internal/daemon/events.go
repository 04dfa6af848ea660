package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"demoflow/internal/api"
	"demoflow/internal/logging"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = eventsPongWait * 9 / 10
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleEvents streams session views over a websocket. The first message is
// the current view; later messages follow every change. Slow clients only
// ever see the latest view.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	updates := make(chan api.SessionView, 1)
	push := func(view api.SessionView) {
		for {
			select {
			case updates <- view:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	push(sess.View())
	unsubscribe := sess.Subscribe(push)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()
	logger := s.logger.With(logging.String(logging.FieldSessionID, sess.ID()))
	logger.Debug("event stream opened")
	for {
		select {
		case <-closed:
			logger.Debug("event stream closed")
			return
		case <-r.Context().Done():
			return
		case <-sess.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventsWriteWait))
			logger.Debug("event stream ended by session close")
			return
		case view := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(view); err != nil {
				logger.Debug("event stream write failed", logging.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
