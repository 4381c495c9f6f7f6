package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
)

const (
	wsReadLimit  = 4 * 1024
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 60 * time.Second
	wsWriteWait  = 10 * time.Second
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.allowedOrigins[origin]
		},
	}
}

// NotificationsWebSocket streams new notifications to the signed-in user.
// The socket is push only; client frames other than pongs are discarded.
func (h *Handler) NotificationsWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := h.hub.Register(userID, conn)
	defer h.hub.Unregister(c)
	h.logger.WithFields(logrus.Fields{"user_id": userID, "conn_id": c.ID}).Debug("notification socket opened")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
