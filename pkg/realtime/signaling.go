package realtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pion/sdp/v3"
)

// maxAnswerSize bounds the signaling response body.
const maxAnswerSize = 1 << 20

// exchangeSDP posts the offer to endpoint and returns the validated
// answer. Every failure is a NegotiationError.
func exchangeSDP(ctx context.Context, hc *http.Client, endpoint, model string, cred Credential, offer string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", negotiationError("invalid_endpoint", endpoint, 0, err)
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(offer))
	if err != nil {
		return "", negotiationError("invalid_request", "build request", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token())
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := hc.Do(req)
	if err != nil {
		return "", negotiationError("sdp_exchange_failed", "request failed", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
	if err != nil {
		return "", negotiationError("sdp_exchange_failed", "read answer", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", negotiationError("sdp_exchange_failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(bytes.TrimSpace(body)), 200)),
			resp.StatusCode, nil)
	}
	if err := validateAnswer(body); err != nil {
		return "", negotiationError("malformed_answer", "invalid SDP answer", resp.StatusCode, err)
	}
	return string(body), nil
}

// validateAnswer checks that raw parses as SDP and negotiates media.
func validateAnswer(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("empty answer")
	}
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(raw); err != nil {
		return err
	}
	if len(desc.MediaDescriptions) == 0 {
		return fmt.Errorf("answer has no media sections")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
