package push

import (
	"context"
	"errors"
	"testing"

	"circlechat/internal/app/user"
)

type stubProvider struct {
	sent []string
	err  error
}

func (s *stubProvider) Send(_ context.Context, token string, _ Notification) error {
	s.sent = append(s.sent, token)
	return s.err
}

func TestDispatchPrefersNativeToken(t *testing.T) {
	native := &stubProvider{}
	expo := &stubProvider{}
	d := NewDispatcher(native, expo)

	d.Dispatch(context.Background(), &user.Profile{
		UserID:        "bob",
		APNSToken:     "apns-token",
		ExpoPushToken: "ExponentPushToken[x]",
	}, "Alice", "hi")

	if len(native.sent) != 1 || native.sent[0] != "apns-token" {
		t.Fatalf("native sends = %v, want [apns-token]", native.sent)
	}
	if len(expo.sent) != 0 {
		t.Fatalf("expo sends = %v, want none when native token exists", expo.sent)
	}
}

func TestDispatchFallsBackToCrossPlatform(t *testing.T) {
	expo := &stubProvider{}
	d := NewDispatcher(nil, expo)

	d.Dispatch(context.Background(), &user.Profile{
		UserID:        "bob",
		APNSToken:     "apns-token",
		ExpoPushToken: "ExponentPushToken[x]",
	}, "Alice", "hi")

	// Without a native provider the native token is unusable.
	if len(expo.sent) != 1 || expo.sent[0] != "ExponentPushToken[x]" {
		t.Fatalf("expo sends = %v, want the expo token", expo.sent)
	}
}

func TestDispatchNoTokensIsNoOp(t *testing.T) {
	native := &stubProvider{}
	expo := &stubProvider{}
	d := NewDispatcher(native, expo)

	d.Dispatch(context.Background(), &user.Profile{UserID: "bob"}, "Alice", "hi")

	if len(native.sent)+len(expo.sent) != 0 {
		t.Fatal("tokenless recipient triggered a provider call")
	}
}

func TestDispatchSwallowsProviderError(t *testing.T) {
	expo := &stubProvider{err: errors.New("gateway down")}
	d := NewDispatcher(nil, expo)

	// Must not panic or propagate; Dispatch has no error return.
	d.Dispatch(context.Background(), &user.Profile{
		UserID:        "bob",
		ExpoPushToken: "ExponentPushToken[x]",
	}, "Alice", "hi")

	if len(expo.sent) != 1 {
		t.Fatalf("expo sends = %v, want one attempt", expo.sent)
	}
}
