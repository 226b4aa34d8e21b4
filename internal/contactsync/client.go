// Package contactsync pushes confirmed subscribers to an external contact
// platform. Sync is best-effort: a failed push is logged and retried by
// the caller's schedule, never surfaced to the subscriber.
package contactsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/inkwell-hq/inkwell/internal/pkg/httpretry"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

// Client talks to the external contact API. A nil Client disables sync.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.Doer
}

// New creates a sync client, or nil when no API key is configured.
func New(baseURL, apiKey string) *Client {
	if apiKey == "" || baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpretry.New(&http.Client{Timeout: 15 * time.Second}, 3),
	}
}

// Contact is the payload pushed upstream on confirmation.
type Contact struct {
	Email        string   `json:"email"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Lists        []string `json:"lists,omitempty"`
	ReferralCode string   `json:"referral_code,omitempty"`
}

// Upsert pushes one contact. Returns an error for the caller to log; the
// caller decides whether anything is retried.
func (c *Client) Upsert(ctx context.Context, contact Contact) error {
	if c == nil {
		return nil
	}

	payload, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("encoding contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/contacts", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("contact sync: status %d: %s", resp.StatusCode, string(body))
	}

	logger.Debug("contact synced", "email", contact.Email)
	return nil
}

// Remove deletes a contact upstream after an unsubscribe.
func (c *Client) Remove(ctx context.Context, email string) error {
	if c == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/contacts?email="+url.QueryEscape(email), nil)
	if err != nil {
		return fmt.Errorf("building remove request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact remove: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("contact remove: status %d", resp.StatusCode)
	}
	return nil
}
