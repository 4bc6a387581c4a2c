/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the message history and delivery status endpoints.
*/
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"circlechat/internal/app/message"
	"circlechat/internal/pkg/auth/jwt"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/randx"
	"circlechat/internal/pkg/resp"
)

// requesterID resolves the calling user: the identity token when present,
// otherwise the explicit uid query parameter.
func requesterID(r *http.Request) string {
	if payload := jwt.GetPayloadFromContext(r); payload != nil {
		return payload.ID
	}
	return r.URL.Query().Get("uid")
}

// HandleListHistory serves one page of room history, oldest to newest.
// Fetching as the recipient advances pending messages to delivered.
func HandleListHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if !randx.IsValidRoomID(roomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomIDInvalid))
			return
		}

		query := message.HistoryQuery{
			RoomID:           roomID,
			RequestingUserID: requesterID(r),
		}

		if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
			before, err := time.Parse(time.RFC3339, beforeStr)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			query.Before = before
		}

		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			limit, err := strconv.Atoi(limitStr)
			if err != nil || limit < 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			query.Limit = limit
		}

		messages, cerr := deps.Messages.ListHistory(r.Context(), query)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if messages == nil {
			messages = []message.Message{}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":   roomID,
			"messages": messages,
		})
	}
}

// HandleStatusPoll serves the sender-side delivery status poll: the caller's
// messages in the room that have advanced past sent.
func HandleStatusPoll(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		senderID := requesterID(r)

		updates, cerr := deps.Messages.ListStatusUpdates(r.Context(), roomID, senderID)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if updates == nil {
			updates = []message.Message{}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"roomId":  roomID,
			"updates": updates,
		})
	}
}
