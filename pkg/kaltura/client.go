// Package kaltura is a session-authenticated facade over the Kaltura
// HTTP+JSON RPC API, restricted to the category and media surface the
// migration needs. The transport retries failed calls a bounded number
// of times before surfacing the error.
package kaltura

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Config holds the connection settings for one Kaltura endpoint.
type Config struct {
	ServiceURL  string
	PartnerID   int64
	AdminSecret string
	// UserID is recorded by Kaltura as the acting user of the admin
	// session, typically the operator's email.
	UserID string
}

// RetryPolicy is a bounded retry schedule. Keeping it as data lets each
// remote operation kind carry its own schedule and makes the schedules
// testable in isolation.
type RetryPolicy struct {
	MaxTries     uint
	InitialDelay time.Duration
	Multiplier   float64
}

// TransportRetry is applied to every HTTP round trip.
var TransportRetry = RetryPolicy{MaxTries: 3, InitialDelay: time.Second, Multiplier: 1.0}

// LockedRetry is applied when the taxonomy is locked: four attempts
// separated by delays doubling from one second (1s, 2s, 4s).
var LockedRetry = RetryPolicy{MaxTries: 4, InitialDelay: time.Second, Multiplier: 2.0}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	return b
}

// Run executes op under the policy. Errors wrapped with
// backoff.Permanent stop the retries immediately.
func Run[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.MaxTries))
}

const sessionTypeAdmin = 2

// Client is the remote catalog client. All calls reuse the admin
// session token obtained at construction.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.SugaredLogger
	ks         string
	audit      Audit
}

// NewClient opens an admin session against the configured endpoint.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        zap.S().Named("kaltura"),
	}
	var ks string
	if err := c.call(ctx, "session", "start", map[string]any{
		"secret":    cfg.AdminSecret,
		"userId":    cfg.UserID,
		"type":      sessionTypeAdmin,
		"partnerId": cfg.PartnerID,
	}, &ks); err != nil {
		return nil, fmt.Errorf("starting kaltura session: %w", err)
	}
	c.ks = ks
	return c, nil
}

// call performs one RPC, retrying transport-level failures under
// TransportRetry. API-level errors are not retried here.
func (c *Client) call(ctx context.Context, service, action string, params map[string]any, out any) error {
	url := fmt.Sprintf("%s/api_v3/service/%s/action/%s", c.cfg.ServiceURL, service, action)

	body := make(map[string]any, len(params)+2)
	for k, v := range params {
		body[k] = v
	}
	body["format"] = 1
	if c.ks != "" {
		body["ks"] = c.ks
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	raw, err := Run(ctx, TransportRetry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error %s from %s/%s", resp.Status, service, action)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %s from %s/%s", resp.Status, service, action))
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("calling %s/%s: %w", service, action, err)
	}

	if apiErr := decodeAPIError(raw); apiErr != nil {
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding %s/%s response: %w", service, action, err)
		}
	}
	return nil
}

// decodeAPIError detects the KalturaAPIException envelope. The API
// returns errors with HTTP 200, distinguished only by objectType.
func decodeAPIError(raw []byte) error {
	var probe struct {
		ObjectType string `json:"objectType"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	if probe.ObjectType == "KalturaAPIException" {
		return &APIError{Code: probe.Code, Message: probe.Message}
	}
	return nil
}
