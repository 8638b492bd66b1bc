package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay_chat/internal/utils/log"
)

const (
	notifyWriteWait  = 10 * time.Second
	notifyPingPeriod = 30 * time.Second
)

// HandleNotifyWS upgrades to a websocket that receives a "new" text frame
// whenever something is queued for the authenticated user. Frames carry no
// content; clients poll the index in response.
func (s *HttpServer) HandleNotifyWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.String("user", user), zap.Error(err))
			return
		}
		defer conn.Close()

		notify, cancel := s.storage.Subscribe(r.Context(), user)
		defer cancel()

		// The read loop only detects the peer going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					log.Debug("notify socket closed", zap.String("user", user), zap.Error(err))
					return
				}
			}
		}()

		ping := time.NewTicker(notifyPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-notify:
				conn.SetWriteDeadline(time.Now().Add(notifyWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, []byte("new")); err != nil {
					log.Debug("notify write failed", zap.String("user", user), zap.Error(err))
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(notifyWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
