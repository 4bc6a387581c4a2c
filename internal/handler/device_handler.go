/*
Package handler provides the HTTP handlers and routing setup for the CircleChat server.

This file contains the device registration endpoint. Registering a push token
creates or refreshes the profile row and issues the identity token used on
subsequent HTTP calls.
*/
package handler

import (
	"net/http"

	"circlechat/internal/app/push"
	"circlechat/internal/app/user"
	"circlechat/internal/pkg/auth/jwt"
	"circlechat/internal/pkg/errs"
	"circlechat/internal/pkg/logx"
	"circlechat/internal/pkg/randx"
	"circlechat/internal/pkg/req"
	"circlechat/internal/pkg/resp"
)

// registerDeviceRequest is the body of a device registration call. Exactly one
// of the token fields should be set; APNs wins when both are.
type registerDeviceRequest struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	APNSToken     string `json:"apnsToken"`
	ExpoPushToken string `json:"expoPushToken"`
}

// HandleRegisterDevice stores the device push token and returns an identity token.
func HandleRegisterDevice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerDeviceRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		if !randx.IsValidID(body.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var kind, token string
		switch {
		case body.APNSToken != "":
			kind, token = user.TokenKindNative, body.APNSToken

		case body.ExpoPushToken != "":
			if !push.IsExpoPushToken(body.ExpoPushToken) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			kind, token = user.TokenKindCrossPlatform, body.ExpoPushToken

		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Users.RegisterDevice(r.Context(), body.UserID, body.DisplayName, kind, token); err != nil {
			logx.Error(err, "Failed to register device", "user_id", body.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		identity := &jwt.Payload{
			ID:          body.UserID,
			DisplayName: body.DisplayName,
		}

		tokenString, err := jwt.GenerateToken(identity, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
		if err != nil {
			logx.Error(err, "Failed to generate identity token", "user_id", body.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"userId": body.UserID,
			"token":  tokenString,
		})
	}
}
