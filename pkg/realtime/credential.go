package realtime

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/itchyny/gojq"
)

// DefaultTokenPath selects the ephemeral token in a session creation
// response.
const DefaultTokenPath = ".client_secret.value"

// Credential is a short-lived bearer token for one signaling exchange.
// It formats and logs as a redacted value.
type Credential struct {
	token string
}

// NewCredential wraps token.
func NewCredential(token string) Credential {
	return Credential{token: token}
}

// Token returns the bearer token.
func (c Credential) Token() string { return c.token }

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool { return c.token != "" }

func (c Credential) String() string { return "Credential{redacted}" }

func (c Credential) GoString() string { return c.String() }

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue("redacted")
}

// MarshalJSON refuses to serialize the token.
func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"redacted"`), nil
}

// Mediator mints a Credential from a trusted server. It is called once
// per Connect.
type Mediator interface {
	Credential(ctx context.Context) (Credential, error)
}

// MediatorFunc adapts a function to Mediator.
type MediatorFunc func(ctx context.Context) (Credential, error)

// Credential implements Mediator.
func (f MediatorFunc) Credential(ctx context.Context) (Credential, error) {
	return f(ctx)
}

// HTTPMediator fetches a credential from the application's token
// endpoint and selects the token with a jq expression.
type HTTPMediator struct {
	// URL is the token endpoint.
	URL string

	// Method is the HTTP method. Default: GET, or POST when Body is set.
	Method string

	// Body is sent as JSON when non-nil.
	Body any

	// Header is added to the request.
	Header http.Header

	// TokenPath is a jq expression selecting the token.
	// Default: DefaultTokenPath
	TokenPath string

	// HTTPClient is used for the request. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// NewHTTPMediator creates a GET mediator for url.
func NewHTTPMediator(url string) *HTTPMediator {
	return &HTTPMediator{URL: url}
}

// Credential implements Mediator.
func (m *HTTPMediator) Credential(ctx context.Context) (Credential, error) {
	path := m.TokenPath
	if path == "" {
		path = DefaultTokenPath
	}
	query, err := gojq.Parse(path)
	if err != nil {
		return Credential{}, credentialError("invalid_token_path", path, 0, err)
	}

	method := m.Method
	var body io.Reader
	if m.Body != nil {
		data, err := json.Marshal(m.Body)
		if err != nil {
			return Credential{}, credentialError("invalid_request", "encode body", 0, err)
		}
		body = bytes.NewReader(data)
		if method == "" {
			method = http.MethodPost
		}
	}
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, m.URL, body)
	if err != nil {
		return Credential{}, credentialError("invalid_request", "build request", 0, err)
	}
	for k, vs := range m.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	hc := m.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Credential{}, credentialError("mediator_unreachable", "request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Credential{}, credentialError("mediator_failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
			resp.StatusCode, nil)
	}

	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Credential{}, credentialError("malformed_response", "decode response", resp.StatusCode, err)
	}
	token, err := extractToken(query, doc)
	if err != nil {
		return Credential{}, credentialError("missing_token", path, resp.StatusCode, err)
	}
	return NewCredential(token), nil
}

// extractToken runs query against doc and requires a non-empty string.
func extractToken(query *gojq.Query, doc any) (string, error) {
	iter := query.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return "", fmt.Errorf("no token in response")
	}
	if err, ok := v.(error); ok {
		return "", err
	}
	token, ok := v.(string)
	if !ok || token == "" {
		return "", fmt.Errorf("no token in response")
	}
	return token, nil
}

// OpenAIMediator mints ephemeral tokens directly from the session
// creation API with a long-lived API key. Use it only where the key is
// already trusted, such as a local CLI.
type OpenAIMediator struct {
	APIKey string

	// BaseURL is the realtime HTTP endpoint. Default: DefaultHTTPURL.
	BaseURL string

	// Model defaults to DefaultModel, Voice to VoiceAlloy.
	Model string
	Voice string

	// Instructions is the initial system prompt, if any.
	Instructions string

	HTTPClient *http.Client
}

// Credential implements Mediator.
func (m *OpenAIMediator) Credential(ctx context.Context) (Credential, error) {
	if m.APIKey == "" {
		return Credential{}, credentialError("missing_api_key", "no API key configured", 0, nil)
	}
	base := m.BaseURL
	if base == "" {
		base = DefaultHTTPURL
	}
	body := map[string]any{
		"model": cmp.Or(m.Model, DefaultModel),
		"voice": cmp.Or(m.Voice, VoiceAlloy),
	}
	if m.Instructions != "" {
		body["instructions"] = m.Instructions
	}
	inner := &HTTPMediator{
		URL:        strings.TrimSuffix(base, "/") + "/sessions",
		Body:       body,
		Header:     http.Header{"Authorization": {"Bearer " + m.APIKey}},
		HTTPClient: m.HTTPClient,
	}
	return inner.Credential(ctx)
}
