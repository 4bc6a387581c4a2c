/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the visible-users listing, annotated with live presence.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"circlechat/internal/app/user"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/randx"
	"circlechat/internal/pkg/resp"
)

// HandleListVisibleUsers serves one page of users visible to the caller,
// capped by the caller's unlocked count, with live online flags attached.
func HandleListVisibleUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requesterID(r)
		if !randx.IsValidID(userID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		page := 1
		if pageStr := r.URL.Query().Get("page"); pageStr != "" {
			parsed, err := strconv.Atoi(pageStr)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			page = parsed
		}

		limit := 10
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed < 1 || parsed > 100 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}

		users, hasMore, err := deps.Users.ListVisible(r.Context(), userID, page, limit)
		if err != nil {
			if errors.Is(err, user.ErrProfileNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "Failed to list visible users", "user_id", userID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		registry := deps.Broadcaster.Registry()
		for i := range users {
			users[i].IsOnline = registry.IsOnline(users[i].UserID)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"users":   users,
			"page":    page,
			"hasMore": hasMore,
		})
	}
}
