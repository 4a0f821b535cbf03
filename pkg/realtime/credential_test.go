package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPMediator(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		path      string
		wantToken string
		wantCode  string
	}{
		{"nested token", 200, `{"client_secret":{"value":"ek_123","expires_at":1}}`, "", "ek_123", ""},
		{"custom path", 200, `{"data":{"token":"tok"}}`, ".data.token", "tok", ""},
		{"missing token", 200, `{"client_secret":{}}`, "", "", "missing_token"},
		{"empty token", 200, `{"client_secret":{"value":""}}`, "", "", "missing_token"},
		{"non-string token", 200, `{"client_secret":{"value":42}}`, "", "", "missing_token"},
		{"not an object", 200, `"just a string"`, "", "", "missing_token"},
		{"malformed json", 200, `{`, "", "", "malformed_response"},
		{"server error", 500, `{"error":"boom"}`, "", "", "mediator_failed"},
		{"bad path", 200, `{}`, ".[", "", "invalid_token_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenServer(t, tt.status, tt.body)
			m := &HTTPMediator{URL: srv.URL, TokenPath: tt.path}
			cred, err := m.Credential(context.Background())

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Credential() error: %v", err)
				}
				if cred.Token() != tt.wantToken {
					t.Errorf("Token() = %q, want %q", cred.Token(), tt.wantToken)
				}
				return
			}
			if !errors.Is(err, ErrCredential) {
				t.Fatalf("Credential() error = %v, want ErrCredential", err)
			}
			var rerr *Error
			if !errors.As(err, &rerr) || rerr.Code != tt.wantCode {
				t.Errorf("Credential() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestHTTPMediator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPMediator(url).Credential(context.Background())
	if !errors.Is(err, ErrCredential) {
		t.Errorf("Credential() error = %v, want ErrCredential", err)
	}
}

func TestOpenAIMediator(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"id":"sess_1","client_secret":{"value":"ek_abc"}}`)
	}))
	defer srv.Close()

	m := &OpenAIMediator{APIKey: "sk-test", BaseURL: srv.URL + "/v1/realtime", Voice: VoiceVerse}
	cred, err := m.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential() error: %v", err)
	}
	if cred.Token() != "ek_abc" {
		t.Errorf("Token() = %q, want ek_abc", cred.Token())
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "POST /v1/realtime/sessions" {
		t.Errorf("request = %q", gotPath)
	}
	if gotBody["model"] != DefaultModel || gotBody["voice"] != VoiceVerse {
		t.Errorf("body = %v", gotBody)
	}

	_, err = (&OpenAIMediator{}).Credential(context.Background())
	if !errors.Is(err, ErrCredential) {
		t.Errorf("Credential() without key error = %v, want ErrCredential", err)
	}
}

func TestCredential_Redacted(t *testing.T) {
	cred := NewCredential("ek_secret")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("minted", "credential", cred)

	outputs := []string{
		buf.String(),
		fmt.Sprintf("%v %+v %#v %s", cred, cred, cred, cred),
	}
	data, _ := json.Marshal(cred)
	outputs = append(outputs, string(data))

	for _, out := range outputs {
		if strings.Contains(out, "ek_secret") {
			t.Errorf("token leaked: %s", out)
		}
	}
	if !cred.Valid() || NewCredential("").Valid() {
		t.Error("Valid() mismatch")
	}
}
