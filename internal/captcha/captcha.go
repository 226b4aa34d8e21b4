// Package captcha verifies Turnstile-style challenge tokens on public
// signup submissions.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkwell-hq/inkwell/internal/pkg/httpretry"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Verifier checks a challenge token against the provider's siteverify
// endpoint. A nil Verifier skips verification entirely.
type Verifier struct {
	secret    string
	verifyURL string
	client    httpretry.Doer
}

// New creates a verifier. Returns nil when no secret is configured, which
// callers treat as captcha-disabled.
func New(secret, verifyURL string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    httpretry.New(&http.Client{Timeout: 10 * time.Second}, 2),
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks one token. remoteIP is optional. Provider outages fail
// open: a signup is never lost to a captcha backend being down.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v == nil {
		return true, nil
	}
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("building verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		logger.Warn("captcha verify unreachable, failing open", "error", err)
		return true, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("captcha verify bad status, failing open", "status", resp.StatusCode)
		return true, nil
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding verify response: %w", err)
	}
	if !result.Success {
		logger.Debug("captcha rejected", "codes", strings.Join(result.ErrorCodes, ","))
	}
	return result.Success, nil
}
