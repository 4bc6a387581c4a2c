/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the HandleWebSocket function, which rate limits and upgrades
the HTTP connection, then starts the connection's read and write pumps.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"circlechat/internal/app/chat"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/limiter"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The socket starts anonymous; the client binds a user with a register-user event.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := chat.NewConn(deps.Hub, deps.Broadcaster, deps.Messages, wsConn, deps.Config.RoomScopedPresence)

		go conn.WritePump()

		logx.Info("WebSocket connection established", "conn_id", conn.ID())

		conn.ReadPump()
	}
}
