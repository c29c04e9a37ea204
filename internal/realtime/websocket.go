package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Frame is the wire form of a Snapshot.
type Frame struct {
	Topic string `json:"topic"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and streams topic snapshots until the client
// disconnects or a snapshot load fails.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) {
	h.ServeWSUntil(w, r, topic, time.Time{})
}

// ServeWSUntil is ServeWS for credentialed streams: the socket is closed with
// a policy violation once expiresAt passes. A zero expiresAt never expires.
func (h *Hub) ServeWSUntil(w http.ResponseWriter, r *http.Request, topic string, expiresAt time.Time) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.Subscribe(ctx, topic)
	if err != nil {
		writeFrame(conn, Frame{Topic: topic, Error: "snapshot unavailable"})
		return
	}
	defer sub.Close()

	go readUntilClosed(conn, cancel)

	var expired <-chan time.Time
	if !expiresAt.IsZero() {
		timer := time.NewTimer(time.Until(expiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case snapshot, ok := <-sub.C():
			if !ok {
				return
			}
			frame := Frame{Topic: snapshot.Topic, Data: snapshot.Data}
			if snapshot.Err != nil {
				frame = Frame{Topic: snapshot.Topic, Error: "snapshot unavailable"}
			}
			if err := writeFrame(conn, frame); err != nil {
				return
			}
			if snapshot.Err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot unavailable"),
					time.Now().Add(writeWait))
				return
			}
		case <-expired:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

// readUntilClosed drains client frames so control messages are processed.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
