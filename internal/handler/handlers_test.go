package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"circlechat/internal/app/chat"
	"circlechat/internal/app/message"
	"circlechat/internal/app/presence"
	"circlechat/internal/app/social"
	"circlechat/internal/app/user"
	"circlechat/internal/configs"
	"circlechat/internal/pkg/errs"
)

// fakeMessageStore backs the message service with in-memory state following
// the guarded-transition contract.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]*message.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*message.Message)}
}

func (s *fakeMessageStore) CreateMessage(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *fakeMessageStore) MarkDelivered(_ context.Context, id string) (*message.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Status != message.StatusSent {
		return nil, false, nil
	}
	now := time.Now().UTC()
	m.Status = message.StatusDelivered
	m.DeliveredAt = &now
	cp := *m
	return &cp, true, nil
}

func (s *fakeMessageStore) MarkDeliveredBulk(_ context.Context, roomID string, ids []string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var updated []message.Message
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.RoomID != roomID || m.Status != message.StatusSent {
			continue
		}
		m.Status = message.StatusDelivered
		m.DeliveredAt = &now
		updated = append(updated, *m)
	}
	return updated, nil
}

func (s *fakeMessageStore) MarkRoomRead(_ context.Context, roomID, readerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var ids []string
	for _, m := range s.messages {
		if m.RoomID == roomID && m.ReceiverID == readerID && m.Status != message.StatusRead {
			m.Status = message.StatusRead
			m.ReadAt = &now
			if m.DeliveredAt == nil {
				m.DeliveredAt = &now
			}
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (s *fakeMessageStore) ListRoomMessages(_ context.Context, roomID string, before time.Time, limit int) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Message
	for _, m := range s.messages {
		if m.RoomID != roomID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, *m)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeMessageStore) ListStatusUpdates(_ context.Context, roomID, senderID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []message.Message
	for _, m := range s.messages {
		if m.RoomID == roomID && m.SenderID == senderID && m.Status != message.StatusSent {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeUserStore struct {
	mu       sync.Mutex
	profiles map[string]*user.Profile
	devices  []string
}

func (s *fakeUserStore) FindProfile(_ context.Context, userID string) (*user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, user.ErrProfileNotFound
	}
	return p, nil
}

func (s *fakeUserStore) RegisterDevice(_ context.Context, userID, displayName, kind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, fmt.Sprintf("%s/%s/%s", userID, kind, token))
	if s.profiles == nil {
		s.profiles = make(map[string]*user.Profile)
	}
	s.profiles[userID] = &user.Profile{UserID: userID, DisplayName: displayName}
	return nil
}

func (s *fakeUserStore) ListVisible(_ context.Context, userID string, page, limit int) ([]user.ListedUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		return nil, false, user.ErrProfileNotFound
	}
	var out []user.ListedUser
	for id, p := range s.profiles {
		if id != userID {
			out = append(out, user.ListedUser{UserID: id, DisplayName: p.DisplayName})
		}
	}
	return out, false, nil
}

type fakeSocialStore struct {
	mu      sync.Mutex
	blocks  map[string]bool
	unlocks map[string]bool
	reports int
	balance int64
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *fakeSocialStore) Block(_ context.Context, blocker, blocked string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blocker + ">" + blocked
	if s.blocks == nil {
		s.blocks = make(map[string]bool)
	}
	if s.blocks[key] {
		return social.ErrAlreadyBlocked
	}
	s.blocks[key] = true
	delete(s.unlocks, pairKey(blocker, blocked))
	return nil
}

func (s *fakeSocialStore) Unblock(_ context.Context, blocker, blocked string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blocker + ">" + blocked
	if !s.blocks[key] {
		return social.ErrNotBlocked
	}
	delete(s.blocks, key)
	return nil
}

func (s *fakeSocialStore) ListBlocked(_ context.Context, blocker string) ([]social.BlockedUser, error) {
	return nil, nil
}

func (s *fakeSocialStore) EitherBlocked(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[a+">"+b] || s.blocks[b+">"+a], nil
}

func (s *fakeSocialStore) Report(_ context.Context, reporter, reported, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports++
	return nil
}

func (s *fakeSocialStore) HasUnlock(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocks[pairKey(a, b)], nil
}

func (s *fakeSocialStore) PurchaseUnlock(_ context.Context, payer, target string) (*social.UnlockResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(payer, target)
	if s.unlocks[key] {
		return &social.UnlockResult{Unlocked: true, AlreadyUnlocked: true, RemainingBalance: s.balance}, nil
	}
	if s.balance < social.UnlockCost {
		return nil, social.ErrInsufficientBalance
	}
	s.balance -= social.UnlockCost
	if s.unlocks == nil {
		s.unlocks = make(map[string]bool)
	}
	s.unlocks[key] = true
	return &social.UnlockResult{Unlocked: true, RemainingBalance: s.balance}, nil
}

type fakeMedia struct {
	uploaded map[string]string
}

func (m *fakeMedia) Upload(_ context.Context, key, mimeType string, body io.Reader) error {
	if m.uploaded == nil {
		m.uploaded = make(map[string]string)
	}
	m.uploaded[key] = mimeType
	return nil
}

func (m *fakeMedia) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.example.com/" + key + "?sig=test", nil
}

func (m *fakeMedia) Delete(_ context.Context, key string) error {
	delete(m.uploaded, key)
	return nil
}

func (m *fakeMedia) GetObjectMetadata(_ context.Context, key string) (map[string]string, error) {
	mimeType, ok := m.uploaded[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return map[string]string{"Content-Type": mimeType}, nil
}

type nopPush struct{}

func (nopPush) Dispatch(context.Context, *user.Profile, string, string) {}

type testEnv struct {
	router   http.Handler
	store    *fakeMessageStore
	users    *fakeUserStore
	social   *fakeSocialStore
	media    *fakeMedia
	registry *presence.Registry
}

func newTestEnv() *testEnv {
	hub := chat.NewHub()
	registry := presence.NewRegistry()
	broadcaster := presence.NewBroadcaster(registry, hub)

	store := newFakeMessageStore()
	users := &fakeUserStore{profiles: map[string]*user.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice"},
		"bob":   {UserID: "bob", DisplayName: "Bob"},
	}}
	socialStore := &fakeSocialStore{balance: 250}
	media := &fakeMedia{}

	svc := message.NewService(store, users, nopPush{}, socialStore, registry, hub)

	deps := &AppDeps{
		Config: &configs.AppConfig{
			Environment: "development",
			JWTSecret:   "test-secret",
		},
		Hub:         hub,
		Broadcaster: broadcaster,
		Messages:    svc,
		Users:       users,
		Social:      socialStore,
		Media:       media,
	}

	return &testEnv{
		router:   Router(deps),
		store:    store,
		users:    users,
		social:   socialStore,
		media:    media,
		registry: registry,
	}
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope struct {
		Code    int                        `json:"code"`
		Message string                     `json:"message"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not the JSON envelope: %v\nbody: %s", err, rec.Body.String())
	}

	if envelope.Data == nil {
		envelope.Data = map[string]json.RawMessage{"__code": json.RawMessage(fmt.Sprint(envelope.Code))}
	}
	envelope.Data["__code"] = json.RawMessage(fmt.Sprint(envelope.Code))

	return rec, envelope.Data
}

func envelopeCode(t *testing.T, data map[string]json.RawMessage) int {
	t.Helper()
	var code int
	if err := json.Unmarshal(data["__code"], &code); err != nil {
		t.Fatalf("missing envelope code: %v", err)
	}
	return code
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()

	rec, data := doJSON(t, env.router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status string
	if err := json.Unmarshal(data["status"], &status); err != nil || status != "ok" {
		t.Fatalf("health status = %q (%v)", status, err)
	}
}

func TestRegisterDeviceIssuesToken(t *testing.T) {
	env := newTestEnv()

	_, data := doJSON(t, env.router, http.MethodPost, "/api/device/register", map[string]string{
		"userId":        "carol",
		"displayName":   "Carol",
		"expoPushToken": "ExponentPushToken[c]",
	})

	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("envelope code = %d, want 0", code)
	}

	var token string
	if err := json.Unmarshal(data["token"], &token); err != nil || token == "" {
		t.Fatalf("token = %q (%v), want a signed identity token", token, err)
	}

	if len(env.users.devices) != 1 {
		t.Fatalf("registered devices = %v, want one", env.users.devices)
	}
}

func TestRegisterDeviceRejectsMalformedExpoToken(t *testing.T) {
	env := newTestEnv()

	rec, data := doJSON(t, env.router, http.MethodPost, "/api/device/register", map[string]string{
		"userId":        "carol",
		"expoPushToken": "not-a-token",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := envelopeCode(t, data); code != errs.ErrInvalidParams {
		t.Fatalf("envelope code = %d, want %d", code, errs.ErrInvalidParams)
	}
}

func TestListHistoryDeliversForRecipient(t *testing.T) {
	env := newTestEnv()

	seed := &message.Message{
		ID: "11111111-1111-1111-1111-111111111111", RoomID: "alice_bob",
		SenderID: "alice", ReceiverID: "bob",
		Body: "hi", Status: message.StatusSent, CreatedAt: time.Now().UTC(),
	}
	if err := env.store.CreateMessage(context.Background(), seed); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	_, data := doJSON(t, env.router, http.MethodGet, "/api/messages/alice_bob?uid=bob", nil)
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("envelope code = %d, want 0", code)
	}

	var messages []message.Message
	if err := json.Unmarshal(data["messages"], &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Status != message.StatusDelivered {
		t.Fatalf("messages = %+v, want one delivered message", messages)
	}
}

func TestListHistoryRejectsBadRoom(t *testing.T) {
	env := newTestEnv()

	_, data := doJSON(t, env.router, http.MethodGet, "/api/messages/bad%20room?uid=bob", nil)
	if code := envelopeCode(t, data); code != errs.ErrRoomIDInvalid {
		t.Fatalf("envelope code = %d, want %d", code, errs.ErrRoomIDInvalid)
	}
}

func TestStatusPoll(t *testing.T) {
	env := newTestEnv()

	now := time.Now().UTC()
	delivered := &message.Message{
		ID: "22222222-2222-2222-2222-222222222222", RoomID: "alice_bob",
		SenderID: "alice", ReceiverID: "bob",
		Body: "x", Status: message.StatusDelivered, CreatedAt: now, DeliveredAt: &now,
	}
	if err := env.store.CreateMessage(context.Background(), delivered); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	_, data := doJSON(t, env.router, http.MethodGet, "/api/messages/alice_bob/status?uid=alice", nil)
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("envelope code = %d, want 0", code)
	}

	var updates []message.Message
	if err := json.Unmarshal(data["updates"], &updates); err != nil {
		t.Fatalf("decode updates: %v", err)
	}
	if len(updates) != 1 || updates[0].Status != message.StatusDelivered {
		t.Fatalf("updates = %+v, want one delivered", updates)
	}
}

func TestVisibleUsersAnnotatesPresence(t *testing.T) {
	env := newTestEnv()
	env.registry.Register("bob", "conn-b")

	_, data := doJSON(t, env.router, http.MethodGet, "/api/users/visible?uid=alice", nil)
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("envelope code = %d, want 0", code)
	}

	var users []user.ListedUser
	if err := json.Unmarshal(data["users"], &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0].UserID != "bob" || !users[0].IsOnline {
		t.Fatalf("users = %+v, want bob online", users)
	}
}

func TestBlockUnblockFlow(t *testing.T) {
	env := newTestEnv()

	_, data := doJSON(t, env.router, http.MethodPost, "/api/social/block", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("block envelope code = %d, want 0", code)
	}

	// Blocking twice surfaces the already-blocked code.
	_, data = doJSON(t, env.router, http.MethodPost, "/api/social/block", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	if code := envelopeCode(t, data); code != errs.ErrAlreadyBlocked {
		t.Fatalf("repeat block code = %d, want %d", code, errs.ErrAlreadyBlocked)
	}

	_, data = doJSON(t, env.router, http.MethodPost, "/api/social/unblock", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("unblock envelope code = %d, want 0", code)
	}

	rec, data := doJSON(t, env.router, http.MethodPost, "/api/social/unblock", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat unblock status = %d, want 404", rec.Code)
	}
	if code := envelopeCode(t, data); code != errs.ErrNotBlocked {
		t.Fatalf("repeat unblock code = %d, want %d", code, errs.ErrNotBlocked)
	}
}

func TestPurchaseUnlockFlow(t *testing.T) {
	env := newTestEnv()

	_, data := doJSON(t, env.router, http.MethodPost, "/api/social/unlock", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("unlock envelope code = %d, want 0", code)
	}

	var remaining int64
	if err := json.Unmarshal(data["remainingBalance"], &remaining); err != nil {
		t.Fatalf("decode remainingBalance: %v", err)
	}
	if remaining != 250-social.UnlockCost {
		t.Fatalf("remaining balance = %d, want %d", remaining, 250-social.UnlockCost)
	}

	// Second purchase is free.
	_, data = doJSON(t, env.router, http.MethodPost, "/api/social/unlock", map[string]string{
		"userId": "alice", "targetUserId": "bob",
	})
	var already bool
	if err := json.Unmarshal(data["alreadyUnlocked"], &already); err != nil || !already {
		t.Fatalf("alreadyUnlocked = %v (%v), want true", already, err)
	}

	// Draining the wallet surfaces the balance error.
	env.social.balance = 0
	_, data = doJSON(t, env.router, http.MethodPost, "/api/social/unlock", map[string]string{
		"userId": "alice", "targetUserId": "carol",
	})
	if code := envelopeCode(t, data); code != errs.ErrInsufficientBalance {
		t.Fatalf("broke unlock code = %d, want %d", code, errs.ErrInsufficientBalance)
	}
}

func TestPresignDownloadValidatesKey(t *testing.T) {
	env := newTestEnv()

	_, data := doJSON(t, env.router, http.MethodGet, "/api/file/presign-download?key=media/abc.jpg", nil)
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("presign envelope code = %d, want 0", code)
	}

	var url string
	if err := json.Unmarshal(data["url"], &url); err != nil || url == "" {
		t.Fatalf("url = %q (%v)", url, err)
	}

	rec, _ := doJSON(t, env.router, http.MethodGet, "/api/file/presign-download?key=../secrets", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("traversal key status = %d, want 400", rec.Code)
	}
}

func TestDeleteMedia(t *testing.T) {
	env := newTestEnv()
	env.media.uploaded = map[string]string{"media/abc.jpg": "image/jpeg"}

	_, data := doJSON(t, env.router, http.MethodDelete, "/api/file?key=media/abc.jpg", nil)
	if code := envelopeCode(t, data); code != 0 {
		t.Fatalf("delete envelope code = %d, want 0", code)
	}
	if _, ok := env.media.uploaded["media/abc.jpg"]; ok {
		t.Fatal("object still present after delete")
	}

	_, data = doJSON(t, env.router, http.MethodDelete, "/api/file?key=media/abc.jpg", nil)
	if code := envelopeCode(t, data); code != errs.ErrFileNotFound {
		t.Fatalf("repeat delete envelope code = %d, want %d", code, errs.ErrFileNotFound)
	}
}
