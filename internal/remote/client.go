package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bakebake-xr/printd/internal/config"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRemoteRejected = errors.New("remote store rejected request")
)

// Record is a row in the remote store's print-request table. The store
// owns it; the daemon only reads the payload and flips the completion
// flag after a confirmed render.
type Record struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Body           string `json:"body"`
	ImageData      string `json:"image_data"`
	PrintRequested bool   `json:"print_requested"`
	PrintCompleted bool   `json:"print_completed"`
}

// Client talks to the remote store over its PostgREST query surface.
type Client struct {
	baseURL string
	apiKey  string
	table   string
	http    *http.Client
}

func NewClient(cfg *config.RemoteConfig) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		table:   cfg.Table,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	c.warnExpiringKey()
	return c
}

// Service keys are issued as JWTs with an expiry; a silently expired
// key looks exactly like an empty table. Warn up front instead.
func (c *Client) warnExpiringKey() {
	if c.apiKey == "" {
		return
	}

	token, _, err := jwt.NewParser().ParseUnverified(c.apiKey, jwt.MapClaims{})
	if err != nil {
		return
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}

	switch {
	case exp.Before(time.Now()):
		log.Printf("remote: api key expired at %s, all requests will fail", exp.Format(time.RFC3339))
	case exp.Before(time.Now().Add(30 * 24 * time.Hour)):
		log.Printf("remote: api key expires %s", exp.Format(time.RFC3339))
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrRemoteRejected, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode remote response: %w", err)
	}
	return nil
}

// ListPending returns the ids of records with dispatch requested but
// not yet completed. Ids only: the image payloads run to megabytes and
// most polls find nothing to do.
func (c *Client) ListPending(ctx context.Context) ([]string, error) {
	path := fmt.Sprintf("/rest/v1/%s?select=id&print_requested=eq.true&print_completed=eq.false", url.PathEscape(c.table))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var stubs []struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &stubs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(stubs))
	for _, s := range stubs {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Fetch returns the full record for one id.
func (c *Client) Fetch(ctx context.Context, id string) (*Record, error) {
	path := fmt.Sprintf("/rest/v1/%s?select=*&id=eq.%s", url.PathEscape(c.table), url.QueryEscape(id))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return &records[0], nil
}

// MarkCompleted sets the completion flag on a record. Called after the
// render succeeded; the caller treats failure as log-only.
func (c *Client) MarkCompleted(ctx context.Context, id string) error {
	path := fmt.Sprintf("/rest/v1/%s?id=eq.%s", url.PathEscape(c.table), url.QueryEscape(id))
	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader([]byte(`{"print_completed":true}`)))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

// RegisterWebhook asks the store to POST record updates to callbackURL.
// Best effort: stores without the registration function simply leave
// the daemon on polling.
func (c *Client) RegisterWebhook(ctx context.Context, callbackURL string) error {
	payload, err := json.Marshal(map[string]string{
		"table":        c.table,
		"callback_url": callbackURL,
	})
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/register_print_webhook", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
