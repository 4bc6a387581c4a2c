package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"circlechat/internal/pkg/logx"
)

const (
	// expoChunkSize is the maximum number of messages the Expo gateway accepts
	// in one request.
	expoChunkSize = 100

	expoRequestTimeout = 10 * time.Second
)

// IsExpoPushToken reports whether the token carries the Expo token framing.
// Malformed tokens are rejected before any network call.
func IsExpoPushToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") ||
		strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

// expoMessage is one entry of the Expo push request body.
type expoMessage struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// expoTicket is the per-message result in the Expo response.
type expoTicket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// ExpoProvider sends notifications through the Expo push HTTP gateway.
type ExpoProvider struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewExpoProvider constructs a provider targeting the given gateway URL.
func NewExpoProvider(url string) *ExpoProvider {
	return &ExpoProvider{
		url:    url,
		client: &http.Client{Timeout: expoRequestTimeout},
		logger: logx.Logger().With().Str("component", "ExpoProvider").Logger(),
	}
}

// Send delivers one notification to one token.
func (p *ExpoProvider) Send(ctx context.Context, token string, n Notification) error {
	return p.SendBatch(ctx, []string{token}, n)
}

// SendBatch delivers the notification to every valid token, split into
// gateway-sized chunks. A failing chunk is logged and does not stop the
// remaining chunks; the first chunk error is returned after all chunks ran.
func (p *ExpoProvider) SendBatch(ctx context.Context, tokens []string, n Notification) error {
	var messages []expoMessage
	for _, token := range tokens {
		if !IsExpoPushToken(token) {
			p.logger.Warn().
				Str("token_prefix", tokenPrefix(token)).
				Msg("Skipping malformed Expo push token.")
			continue
		}
		messages = append(messages, expoMessage{
			To:    token,
			Title: n.Title,
			Body:  n.Body,
			Sound: n.Sound,
		})
	}
	if len(messages) == 0 {
		return fmt.Errorf("no valid expo push tokens among %d", len(tokens))
	}

	var firstErr error
	for start := 0; start < len(messages); start += expoChunkSize {
		end := start + expoChunkSize
		if end > len(messages) {
			end = len(messages)
		}

		if err := p.sendChunk(ctx, messages[start:end]); err != nil {
			p.logger.Warn().Err(err).
				Int("chunk_start", start).
				Int("chunk_size", end-start).
				Msg("Expo push chunk failed.")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (p *ExpoProvider) sendChunk(ctx context.Context, messages []expoMessage) error {
	body, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal expo push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build expo push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("expo push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("expo gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode expo push response: %w", err)
	}

	for i, ticket := range parsed.Data {
		if ticket.Status != "" && ticket.Status != "ok" {
			return fmt.Errorf("expo ticket %d status %q: %s", i, ticket.Status, ticket.Message)
		}
	}

	return nil
}

// tokenPrefix truncates a token for logging without exposing the full value.
func tokenPrefix(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
