/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file defines the main Router, applying middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers
(REST API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"circlechat/internal/pkg/auth/jwt"
	"circlechat/internal/pkg/limiter"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/resp"
)

const (
	// WsRate and WsBurst limit WebSocket upgrades per IP.
	WsRate  = 0.2
	WsBurst = 5

	// DeviceRate and DeviceBurst limit device registrations per IP.
	DeviceRate  = 0.1
	DeviceBurst = 3

	// UploadRate and UploadBurst limit media uploads per IP.
	UploadRate  = 0.2
	UploadBurst = 4
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	wsLimiter := limiter.NewIPRateLimiter(rate.Limit(WsRate), WsBurst)
	deviceLimiter := limiter.NewIPRateLimiter(rate.Limit(DeviceRate), DeviceBurst)
	uploadLimiter := limiter.NewIPRateLimiter(rate.Limit(UploadRate), UploadBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "CircleChat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		rateLimitedRegister := deviceLimiter.Middleware(HandleRegisterDevice(deps))
		api.Post("/device/register", rateLimitedRegister.ServeHTTP)

		api.Route("/messages", func(msg chi.Router) {
			msg.Get("/{roomID}", HandleListHistory(deps))
			msg.Get("/{roomID}/status", HandleStatusPoll(deps))
		})

		api.Get("/users/visible", HandleListVisibleUsers(deps))

		api.Route("/social", func(social chi.Router) {
			social.Post("/block", HandleBlockUser(deps))
			social.Post("/unblock", HandleUnblockUser(deps))
			social.Get("/blocked", HandleListBlocked(deps))
			social.Post("/report", HandleReportUser(deps))
			social.Get("/unlock/status", HandleUnlockStatus(deps))
			social.Post("/unlock", HandlePurchaseUnlock(deps))
		})

		rateLimitedUpload := uploadLimiter.Middleware(HandleUploadMedia(deps))
		api.Post("/file/upload", rateLimitedUpload.ServeHTTP)
		api.Get("/file/presign-download", HandlePresignDownload(deps))
		api.Delete("/file", HandleDeleteMedia(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, wsLimiter, deps))

	return r
}
