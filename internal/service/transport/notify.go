package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay_chat/internal/utils/log"
)

// Notifications opens the relay's push channel. The returned channel gets a
// value whenever a message is queued for us, and is closed when ctx ends or
// the connection drops.
func (c *HTTPClient) Notifications(ctx context.Context) (<-chan struct{}, error) {
	header := http.Header{}
	(&http.Request{Header: header}).SetBasicAuth(c.username, c.password)

	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/notify"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			if e, ok := commonStatus[resp.StatusCode]; ok {
				return nil, e
			}
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, normalize(err))
	}

	out := make(chan struct{}, 1)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				log.Debug("notification socket closed", zap.Error(err))
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}
