package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	goKeeper "github.com/MrEthical07/goKeeper"
)

const maxResponseBytes = 1 << 20

// Config defines a public type used by goKeeper APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Endpoint is the token endpoint URL receiving the refresh request.
	Endpoint string
	// Client is the HTTP client used for the round-trip. Defaults to a
	// client with a 30s timeout.
	Client *http.Client
	// Headers are attached to every request, e.g. an API key header.
	Headers http.Header
}

// HTTPExecutor implements the RefreshExecutor capability over a JSON HTTP
// token endpoint.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
	headers  http.Header
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	SubjectID    string `json:"subjectId"`
	Error        string `json:"error"`
}

// NewHTTPExecutor describes the newhttpexecutor operation and its observable behavior.
//
// NewHTTPExecutor may return an error when input validation, dependency calls, or security checks fail.
// NewHTTPExecutor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHTTPExecutor(cfg Config) (*HTTPExecutor, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("token endpoint required")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPExecutor{
		endpoint: cfg.Endpoint,
		client:   client,
		headers:  cfg.Headers,
	}, nil
}

// Exchange performs one refresh round-trip. The Manager bounds ctx with its
// executor timeout and owns all retry decisions.
//
// Exchange may return an error when input validation, dependency calls, or security checks fail.
// Exchange does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *HTTPExecutor) Exchange(ctx context.Context, refreshToken string) (goKeeper.Credential, error) {
	if refreshToken == "" {
		return goKeeper.Credential{}, fmt.Errorf("%w: empty refresh token", goKeeper.ErrRefreshRejected)
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return goKeeper.Credential{}, fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return goKeeper.Credential{}, fmt.Errorf("build refresh request: %w", err)
	}
	for k, vs := range e.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := e.client.Do(req)
	if err != nil {
		return goKeeper.Credential{}, fmt.Errorf("token endpoint round-trip: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return goKeeper.Credential{}, fmt.Errorf("read token endpoint response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return goKeeper.Credential{}, classifyStatus(resp.StatusCode, payload)
	}

	var out refreshResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return goKeeper.Credential{}, fmt.Errorf("%w: undecodable token response", goKeeper.ErrInvalidCredential)
	}

	expiresAt := time.UnixMilli(out.ExpiresAt)
	if out.ExpiresAt == 0 {
		expiresAt, err = expiryFromJWT(out.AccessToken)
		if err != nil {
			return goKeeper.Credential{}, err
		}
	}

	// Rotation is optional on the backend side; keep the old refresh token
	// when the response omits one.
	next := out.RefreshToken
	if next == "" {
		next = refreshToken
	}

	return goKeeper.Credential{
		AccessToken:  out.AccessToken,
		RefreshToken: next,
		ExpiresAt:    expiresAt,
		SubjectID:    out.SubjectID,
	}, nil
}

// classifyStatus decides rejected versus transient per the Manager's retry
// contract.
func classifyStatus(status int, payload []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: token endpoint status %d", goKeeper.ErrRefreshRejected, status)
	case http.StatusBadRequest:
		var out refreshResponse
		if err := json.Unmarshal(payload, &out); err == nil &&
			strings.EqualFold(out.Error, "invalid_grant") {
			return fmt.Errorf("%w: invalid_grant", goKeeper.ErrRefreshRejected)
		}
		return fmt.Errorf("token endpoint status %d", status)
	default:
		return fmt.Errorf("token endpoint status %d", status)
	}
}

// expiryFromJWT recovers the expiry from the access token's exp claim when the
// endpoint omits expiresAt. The claim is read without signature verification.
func expiryFromJWT(accessToken string) (time.Time, error) {
	if accessToken == "" {
		return time.Time{}, fmt.Errorf("%w: empty access token", goKeeper.ErrInvalidCredential)
	}

	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: token response missing expiry", goKeeper.ErrInvalidCredential)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: token response missing expiry", goKeeper.ErrInvalidCredential)
	}

	return claims.ExpiresAt.Time, nil
}
