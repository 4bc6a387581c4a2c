/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file defines the AppDeps struct, the dependency container handed to every
handler constructor.
*/
package handler

import (
	"circlechat/internal/app/chat"
	"circlechat/internal/app/message"
	"circlechat/internal/app/presence"
	"circlechat/internal/app/social"
	"circlechat/internal/app/storage"
	"circlechat/internal/app/user"
	"circlechat/internal/configs"
)

// AppDeps bundles the application services the handlers depend on.
type AppDeps struct {
	// Config holds the application's read-only configuration settings.
	Config *configs.AppConfig

	// Hub tracks live WebSocket connections and room memberships.
	Hub *chat.Hub

	// Broadcaster coordinates the presence registry with announcements.
	Broadcaster *presence.Broadcaster

	// Messages is the message delivery state machine.
	Messages *message.Service

	// Users is the profile store.
	Users user.Store

	// Social is the block/report/unlock store.
	Social social.Store

	// Media is the attachment storage service.
	Media storage.MediaService
}
