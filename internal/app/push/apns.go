package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt"
	"github.com/rs/zerolog"

	"circlechat/internal/pkg/logx"
)

const (
	// apnsTokenLifetime is how long one signed provider token is reused. Apple
	// accepts tokens up to an hour old; refreshing at 50 minutes stays clear of
	// the boundary.
	apnsTokenLifetime = 50 * time.Minute

	apnsRequestTimeout = 10 * time.Second
)

// APNSConfig carries the credentials for token-based APNs authentication.
type APNSConfig struct {
	// KeyPath is the path to the .p8 signing key.
	KeyPath string

	// KeyID is the 10-character key identifier from the developer portal.
	KeyID string

	// TeamID is the Apple developer team identifier.
	TeamID string

	// Topic is the app bundle id notifications are addressed to.
	Topic string

	// Endpoint is the APNs base URL, production or sandbox.
	Endpoint string
}

// APNSProvider sends notifications over the APNs HTTP/2 API using ES256
// provider tokens.
type APNSProvider struct {
	cfg    APNSConfig
	key    *ecdsa.PrivateKey
	client *http.Client
	logger zerolog.Logger

	// mu guards the cached provider token.
	mu          sync.Mutex
	bearerToken string
	tokenIssued time.Time
}

// NewAPNSProvider loads the signing key and constructs the provider.
func NewAPNSProvider(cfg APNSConfig) (*APNSProvider, error) {
	pemBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read apns signing key: %w", err)
	}

	key, err := jwtlib.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse apns signing key: %w", err)
	}

	return &APNSProvider{
		cfg:    cfg,
		key:    key,
		client: &http.Client{Timeout: apnsRequestTimeout},
		logger: logx.Logger().With().Str("component", "APNSProvider").Logger(),
	}, nil
}

// providerToken returns a signed bearer token, reusing the cached one while it
// is fresh.
func (p *APNSProvider) providerToken() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.bearerToken != "" && now.Sub(p.tokenIssued) < apnsTokenLifetime {
		return p.bearerToken, nil
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodES256, jwtlib.MapClaims{
		"iss": p.cfg.TeamID,
		"iat": now.Unix(),
	})
	token.Header["kid"] = p.cfg.KeyID

	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign apns provider token: %w", err)
	}

	p.bearerToken = signed
	p.tokenIssued = now

	return signed, nil
}

// apnsPayload is the request body of one alert notification.
type apnsPayload struct {
	APS apnsAPS `json:"aps"`
}

type apnsAPS struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound,omitempty"`
}

type apnsAlert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// apnsError is the body APNs returns on a non-200 response.
type apnsError struct {
	Reason string `json:"reason"`
}

// Send delivers one alert notification to one device token.
func (p *APNSProvider) Send(ctx context.Context, deviceToken string, n Notification) error {
	bearer, err := p.providerToken()
	if err != nil {
		return err
	}

	body, err := json.Marshal(apnsPayload{
		APS: apnsAPS{
			Alert: apnsAlert{Title: n.Title, Body: n.Body},
			Sound: n.Sound,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal apns payload: %w", err)
	}

	url := fmt.Sprintf("%s/3/device/%s", strings.TrimRight(p.cfg.Endpoint, "/"), deviceToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build apns request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", p.cfg.Topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("apns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiErr apnsError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Reason != "" {
		return fmt.Errorf("apns returned %d: %s", resp.StatusCode, apiErr.Reason)
	}

	return fmt.Errorf("apns returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
