package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by client identity tokens.
// A token is issued when a device registers its push token and identifies the
// user on subsequent HTTP calls (history, social actions) without a login flow.
type Payload struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss) used for
	// validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable user identifier the token asserts.
	ID string `json:"id"`

	// DisplayName mirrors the profile display name at issue time. Informational
	// only; authoritative data lives in the profile store.
	DisplayName string `json:"display_name,omitempty"`
}
