// Package wsapi implements the WebSocket handler (C7): a single generic
// Serve function used for both the per-checker and the registry-level
// watch endpoints. Ping/pong timing and the upgrader follow the
// teacher's go-server/pkg/websocket/client.go conventions.
package wsapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adred-codev/swec/internal/broadcast"
	"github.com/adred-codev/swec/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type delivery[T any] struct {
	msg T
	lag int
	ok  bool
}

// Serve upgrades the request to a WebSocket and drives the connection
// until the client disconnects or the subscription closes:
//  1. send the Initial frame built atomically by the state facade
//  2. forward every subsequent message from sub
//  3. on lag, synthesize and send a Lagged(n) frame instead of closing
//  4. discard anything the client sends; a read error ends the connection
//
// newLagged builds a T carrying a Lagged(n) payload: Go generics can't
// express "construct the Lagged variant of T" without either a type
// switch or, as here, a small constructor supplied by the caller.
func Serve[T any](
	w http.ResponseWriter,
	r *http.Request,
	initial T,
	sub *broadcast.Subscription[T],
	newLagged func(n int) T,
	subject string,
	m *metrics.Metrics,
	log zerolog.Logger,
) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("wsapi: upgrade failed")
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	wsLog := log.With().Str("conn_id", connID).Str("subject", subject).Logger()

	if m != nil {
		m.WSConnections.Inc()
		defer m.WSConnections.Dec()
	}

	done := make(chan struct{})
	go readPump(conn, done, wsLog)

	if err := writeJSON(conn, initial); err != nil {
		wsLog.Warn().Err(err).Msg("wsapi: failed to send initial frame")
		return
	}

	deliveries := make(chan delivery[T])
	go func() {
		for {
			msg, lag, ok := sub.Recv()
			select {
			case deliveries <- delivery[T]{msg: msg, lag: lag, ok: ok}:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				wsLog.Warn().Err(err).Msg("wsapi: ping failed")
				return
			}
		case d := <-deliveries:
			if !d.ok {
				return
			}
			if d.lag > 0 {
				if m != nil {
					m.BroadcastLagged.WithLabelValues(subject).Add(float64(d.lag))
				}
				if err := writeJSON(conn, newLagged(d.lag)); err != nil {
					wsLog.Warn().Err(err).Msg("wsapi: failed to send lag frame")
					return
				}
				continue
			}
			if err := writeJSON(conn, d.msg); err != nil {
				wsLog.Warn().Err(err).Msg("wsapi: send failed")
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readPump discards everything the client sends, refreshing the read
// deadline on pong. It exists only to detect disconnects and keep the
// connection alive; closing done unblocks Serve's select loop. The
// delivery goroutine exits after its next receive from the subscription.
func readPump(conn *websocket.Conn, done chan struct{}, log zerolog.Logger) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
