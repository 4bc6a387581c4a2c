/*
Package push delivers notifications to offline recipients through the
configured provider backends.

The Dispatcher prefers the platform-native token when the recipient registered
one and falls back to the cross-platform token otherwise. Delivery is best
effort: a recipient without any token is a silent no-op, and a provider
failure is logged and swallowed. The send that triggered the push has already
succeeded by the time this package runs.
*/
package push

import (
	"context"

	"github.com/rs/zerolog"

	"circlechat/internal/app/user"
	"circlechat/internal/pkg/logx"
)

// Notification is the provider-independent payload of one push.
type Notification struct {
	// Title is the sender's display name.
	Title string

	// Body is the message text or a media placeholder.
	Body string

	// Sound names the notification sound on the device.
	Sound string
}

// Provider sends one notification to one device token.
type Provider interface {
	Send(ctx context.Context, token string, n Notification) error
}

// Dispatcher routes a notification to the provider matching the recipient's
// registered tokens.
type Dispatcher struct {
	// native is the APNs provider; nil when the server runs without an APNs
	// signing key.
	native Provider

	// crossPlatform is the Expo provider, always configured.
	crossPlatform Provider

	logger zerolog.Logger
}

// NewDispatcher constructs a Dispatcher. native may be nil.
func NewDispatcher(native, crossPlatform Provider) *Dispatcher {
	return &Dispatcher{
		native:        native,
		crossPlatform: crossPlatform,
		logger:        logx.Logger().With().Str("component", "PushDispatcher").Logger(),
	}
}

// Dispatch sends one notification to the recipient. Token preference is
// native first, then cross-platform. No registered token means no push.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient *user.Profile, senderName, body string) {
	n := Notification{
		Title: senderName,
		Body:  body,
		Sound: "default",
	}

	switch {
	case d.native != nil && recipient.APNSToken != "":
		if err := d.native.Send(ctx, recipient.APNSToken, n); err != nil {
			d.logger.Warn().Err(err).
				Str("user_id", recipient.UserID).
				Msg("Native push failed.")
			return
		}
		d.logger.Info().
			Str("user_id", recipient.UserID).
			Msg("Native push sent.")

	case recipient.ExpoPushToken != "":
		if err := d.crossPlatform.Send(ctx, recipient.ExpoPushToken, n); err != nil {
			d.logger.Warn().Err(err).
				Str("user_id", recipient.UserID).
				Msg("Cross-platform push failed.")
			return
		}
		d.logger.Info().
			Str("user_id", recipient.UserID).
			Msg("Cross-platform push sent.")

	default:
		d.logger.Debug().
			Str("user_id", recipient.UserID).
			Msg("Recipient has no push token registered; skipping.")
	}
}
