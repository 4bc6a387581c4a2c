/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the social endpoints: blocking, reporting, and paid
conversation unlocks.
*/
package handler

import (
	"errors"
	"net/http"

	"circlechat/internal/app/social"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/randx"
	"circlechat/internal/pkg/req"
	"circlechat/internal/pkg/resp"
)

// pairRequest names the caller and the other user of a social action.
type pairRequest struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// resolvePair validates the request pair, preferring the identity token over
// the body's userId.
func resolvePair(r *http.Request, body pairRequest) (string, string, *errs.CustomError) {
	callerID := requesterID(r)
	if callerID == "" {
		callerID = body.UserID
	}

	if !randx.IsValidID(callerID) || !randx.IsValidID(body.TargetUserID) || callerID == body.TargetUserID {
		return "", "", errs.NewError(errs.ErrInvalidParams)
	}

	return callerID, body.TargetUserID, nil
}

// HandleBlockUser records a block and revokes the pair's unlock.
func HandleBlockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pairRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		callerID, targetID, cerr := resolvePair(r, body)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if err := deps.Social.Block(r.Context(), callerID, targetID); err != nil {
			if errors.Is(err, social.ErrAlreadyBlocked) {
				resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyBlocked))
				return
			}
			logx.Error(err, "Failed to block user", "blocker", callerID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"blocked": targetID})
	}
}

// HandleUnblockUser removes a block.
func HandleUnblockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pairRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		callerID, targetID, cerr := resolvePair(r, body)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if err := deps.Social.Unblock(r.Context(), callerID, targetID); err != nil {
			if errors.Is(err, social.ErrNotBlocked) {
				resp.RespondError(w, r, errs.NewError(errs.ErrNotBlocked))
				return
			}
			logx.Error(err, "Failed to unblock user", "blocker", callerID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"unblocked": targetID})
	}
}

// HandleListBlocked serves the caller's block list.
func HandleListBlocked(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := requesterID(r)
		if !randx.IsValidID(callerID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		blocked, err := deps.Social.ListBlocked(r.Context(), callerID)
		if err != nil {
			logx.Error(err, "Failed to list blocked users", "user_id", callerID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		if blocked == nil {
			blocked = []social.BlockedUser{}
		}

		resp.RespondSuccess(w, r, map[string]any{"blocked": blocked})
	}
}

// reportRequest is the body of an abuse report.
type reportRequest struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	Reason       string `json:"reason"`
}

// HandleReportUser files an abuse report.
func HandleReportUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body reportRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		callerID, targetID, cerr := resolvePair(r, pairRequest{UserID: body.UserID, TargetUserID: body.TargetUserID})
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if body.Reason == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Social.Report(r.Context(), callerID, targetID, body.Reason); err != nil {
			logx.Error(err, "Failed to file report", "reporter", callerID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"reported": targetID})
	}
}

// HandleUnlockStatus reports whether the caller's conversation with the target
// user is open.
func HandleUnlockStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := requesterID(r)
		targetID := r.URL.Query().Get("targetUserId")

		if !randx.IsValidID(callerID) || !randx.IsValidID(targetID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		unlocked, err := deps.Social.HasUnlock(r.Context(), callerID, targetID)
		if err != nil {
			logx.Error(err, "Failed to check unlock", "user_id", callerID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"unlocked": unlocked})
	}
}

// HandlePurchaseUnlock deducts the unlock cost and opens the conversation.
// A pair already unlocked is a free no-op.
func HandlePurchaseUnlock(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body pairRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		callerID, targetID, cerr := resolvePair(r, body)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		result, err := deps.Social.PurchaseUnlock(r.Context(), callerID, targetID)
		if err != nil {
			switch {
			case errors.Is(err, social.ErrInsufficientBalance):
				resp.RespondError(w, r, errs.NewError(errs.ErrInsufficientBalance))
			case errors.Is(err, social.ErrProfileMissing):
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			default:
				logx.Error(err, "Failed to purchase unlock", "payer", callerID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			}
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}
