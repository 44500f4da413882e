package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	goKeeper "github.com/MrEthical07/goKeeper"
)

func newExecutorTest(t *testing.T, handler http.HandlerFunc) *HTTPExecutor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	exec, err := NewHTTPExecutor(Config{
		Endpoint: srv.URL,
		Client:   srv.Client(),
		Headers:  http.Header{"X-Api-Key": []string{"test-key"}},
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec
}

func TestExchangeSuccess(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got == "" {
			t.Error("missing request id header")
		}

		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.RefreshToken != "refresh-token-1" {
			t.Errorf("refresh token = %q", req.RefreshToken)
		}

		json.NewEncoder(w).Encode(refreshResponse{
			AccessToken:  "access-token-2",
			RefreshToken: "refresh-token-2",
			ExpiresAt:    expiresAt.UnixMilli(),
			SubjectID:    "user-1",
		})
	})

	cred, err := exec.Exchange(context.Background(), "refresh-token-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if cred.AccessToken != "access-token-2" || cred.RefreshToken != "refresh-token-2" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if !cred.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry = %v, want %v", cred.ExpiresAt, expiresAt)
	}
	if cred.SubjectID != "user-1" {
		t.Fatalf("subject = %q", cred.SubjectID)
	}
}

func TestExchangeExpiryFromJWTClaim(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(refreshResponse{
			AccessToken: signed,
			SubjectID:   "user-1",
		})
	})

	cred, err := exec.Exchange(context.Background(), "refresh-token-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !cred.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry from exp claim = %v, want %v", cred.ExpiresAt, expiresAt)
	}
	// Rotation omitted by the endpoint: the old refresh token survives.
	if cred.RefreshToken != "refresh-token-1" {
		t.Fatalf("refresh token = %q, want the old one kept", cred.RefreshToken)
	}
}

func TestExchangeMissingExpiry(t *testing.T) {
	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(refreshResponse{
			AccessToken: "not-a-jwt",
		})
	})

	_, err := exec.Exchange(context.Background(), "refresh-token-1")
	if !errors.Is(err, goKeeper.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestExchangeUnauthorizedIsRejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := exec.Exchange(context.Background(), "refresh-token-1")
		if !errors.Is(err, goKeeper.ErrRefreshRejected) {
			t.Fatalf("status %d: expected ErrRefreshRejected, got %v", status, err)
		}
	}
}

func TestExchangeInvalidGrantIsRejected(t *testing.T) {
	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(refreshResponse{Error: "invalid_grant"})
	})

	_, err := exec.Exchange(context.Background(), "refresh-token-1")
	if !errors.Is(err, goKeeper.ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
}

func TestExchangeServerErrorIsTransient(t *testing.T) {
	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := exec.Exchange(context.Background(), "refresh-token-1")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if errors.Is(err, goKeeper.ErrRefreshRejected) {
		t.Fatalf("a 500 must stay retryable, got %v", err)
	}
}

func TestExchangeEmptyRefreshToken(t *testing.T) {
	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called for an empty token")
	})

	_, err := exec.Exchange(context.Background(), "")
	if !errors.Is(err, goKeeper.ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
}

func TestExchangeContextCancelled(t *testing.T) {
	exec := newExecutorTest(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client giving up and
		// cancels the request context; otherwise this handler never exits.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := exec.Exchange(ctx, "refresh-token-1"); err == nil {
		t.Fatal("expected an error when the context ends mid round-trip")
	}
}

func TestNewHTTPExecutorRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPExecutor(Config{}); err == nil {
		t.Fatal("expected an error without an endpoint")
	}
}
