package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"freightflow/internal/geo"
	"freightflow/internal/shared/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsAuthTimeout  = 5 * time.Second
	wsReadDeadline = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

type wsMessage struct {
	Type  string  `json:"type"`
	Token string  `json:"token,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
}

type wsResponse struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// LocationStreamHandler upgrades to a websocket over which a driver streams
// GPS fixes. The first frame must be {"type":"auth","token":"Bearer ..."};
// every later {"type":"location"} frame is persisted through the service.
func (h *Handler) LocationStreamHandler(w http.ResponseWriter, r *http.Request) {
	instance := "LocationStreamHandler"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(instance, fmt.Sprintf("upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	driverID, ok := h.authenticateConn(r.Context(), conn)
	if !ok {
		return
	}
	h.logger.Info(instance, "driver "+driverID+" connected for location streaming")

	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

			var msg wsMessage
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "location" {
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
			err = h.service.UpdateLocation(ctx, driverID, geo.Point{Lat: msg.Lat, Lng: msg.Lng})
			cancel()
			if err != nil {
				_ = conn.WriteJSON(wsResponse{Type: "error", Message: err.Error()})
				continue
			}
			_ = conn.WriteJSON(wsResponse{Type: "location_ack"})
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Info(instance, "driver "+driverID+" disconnected")
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// authenticateConn waits for the in-band auth frame and resolves the driver
// profile behind the token.
func (h *Handler) authenticateConn(ctx context.Context, conn *websocket.Conn) (string, bool) {
	conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "auth" {
		_ = conn.WriteJSON(wsResponse{Type: "error", Message: "auth frame required"})
		return "", false
	}

	tokenStr := strings.TrimPrefix(msg.Token, "Bearer ")
	claims := &middleware.Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Role != "driver" {
		_ = conn.WriteJSON(wsResponse{Type: "error", Message: "invalid token"})
		return "", false
	}

	driverID, err := h.service.DriverIDForUser(ctx, claims.UserID)
	if err != nil {
		_ = conn.WriteJSON(wsResponse{Type: "error", Message: "no driver profile"})
		return "", false
	}

	_ = conn.WriteJSON(wsResponse{Type: "auth_success"})
	return driverID, true
}
