package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kubeadapt/gpu-health/pkg/model"
)

func TestWithAuth_SetsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if got != "Bearer test-token-xyz" {
			t.Errorf("expected Authorization 'Bearer test-token-xyz', got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{
		Transport: WithAuth("test-token-xyz", http.DefaultTransport),
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWithLogging_RedactsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: WithLogging(logger, http.DefaultTransport)}

	u := strings.Replace(srv.URL, "http://", "http://user:secret@", 1)
	resp, err := client.Get(u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, "status=204") {
		t.Errorf("log should carry the status, got %q", out)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("log leaked credentials: %q", out)
	}
}

func response(status int, body any, header http.Header) *http.Response {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(b))}
}

func TestParseResponse(t *testing.T) {
	retry := 7

	tests := []struct {
		name    string
		resp    *http.Response
		wantErr error
		check   func(t *testing.T, res *model.PushResponse, err error)
	}{
		{
			name: "200",
			resp: response(http.StatusOK, model.PushResponse{Accepted: true, Message: "ok"}, nil),
			check: func(t *testing.T, res *model.PushResponse, _ error) {
				if !res.Accepted || res.Message != "ok" {
					t.Errorf("unexpected %+v", res)
				}
			},
		},
		{
			name: "202",
			resp: response(http.StatusAccepted, model.PushResponse{Accepted: true}, nil),
		},
		{name: "401", resp: response(http.StatusUnauthorized, nil, nil), wantErr: ErrAuthFailed},
		{name: "403", resp: response(http.StatusForbidden, nil, nil), wantErr: ErrAuthFailed},
		{name: "413", resp: response(http.StatusRequestEntityTooLarge, nil, nil), wantErr: ErrRejected},
		{
			name: "429 header",
			resp: response(http.StatusTooManyRequests, nil, http.Header{"Retry-After": []string{"3"}}),
			check: func(t *testing.T, _ *model.PushResponse, err error) {
				var rl *RateLimitedError
				if !errors.As(err, &rl) || rl.RetryAfter != 3*time.Second {
					t.Errorf("expected 3s RateLimitedError, got %v", err)
				}
			},
		},
		{
			name: "429 body",
			resp: response(http.StatusTooManyRequests, model.PushErrorResponse{RetryAfterSeconds: &retry}, nil),
			check: func(t *testing.T, _ *model.PushResponse, err error) {
				var rl *RateLimitedError
				if !errors.As(err, &rl) || rl.RetryAfter != 7*time.Second {
					t.Errorf("expected 7s RateLimitedError, got %v", err)
				}
			},
		},
		{
			name: "429 default",
			resp: response(http.StatusTooManyRequests, nil, nil),
			check: func(t *testing.T, _ *model.PushResponse, err error) {
				var rl *RateLimitedError
				if !errors.As(err, &rl) || rl.RetryAfter != 5*time.Second {
					t.Errorf("expected default 5s RateLimitedError, got %v", err)
				}
			},
		},
		{
			name: "503",
			resp: response(http.StatusServiceUnavailable, nil, nil),
			check: func(t *testing.T, _ *model.PushResponse, err error) {
				if err == nil || isNonRetryableError(err) {
					t.Errorf("5xx must be a retryable error, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResponse(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !isNonRetryableError(err) {
					t.Errorf("%v should not be retried", err)
				}
			}
			if tt.check != nil {
				tt.check(t, res, err)
			}
		})
	}
}
