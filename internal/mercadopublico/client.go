// Package mercadopublico wraps the two public tender operations of the
// Mercado Público API: listing active tenders for an organization and
// fetching the full detail of one tender.
package mercadopublico

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pinnacle/tender-finder/internal/runlog"
)

// DefaultBaseURL is the public tender endpoint. Both operations hit the
// same URL, disambiguated by query parameters.
const DefaultBaseURL = "https://api.mercadopublico.cl/servicios/v1/publico/licitaciones.json"

// codeRateLimited is the application-level throttle signal the API embeds
// in response bodies, independent of the HTTP status code.
const codeRateLimited = 10500

type Config struct {
	BaseURL string
	Ticket  string
	OrgCode string
	Status  string // listing status filter, e.g. "activas"

	Timeout     time.Duration // per HTTP call, not per run
	MaxAttempts int           // detail attempt ceiling, strict
	BackoffBase time.Duration // doubled per attempt
}

// Client issues the two remote operations. Calls must stay strictly
// sequential: the endpoint throttles aggressively and concurrent requests
// are known to trigger codeRateLimited.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Status == "" {
		cfg.Status = "activas"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 3 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// ListActiveTenders fetches the active-tender listing for the configured
// organization in a single call. Every failure mode degrades to an empty
// slice with a diagnostic; errors never cross this boundary.
func (c *Client) ListActiveTenders(ctx context.Context, rl *runlog.Log) []TenderSummary {
	q := url.Values{}
	q.Set("ticket", c.cfg.Ticket)
	q.Set("CodigoOrganismo", c.cfg.OrgCode)
	q.Set("estado", c.cfg.Status)

	body, status, err := c.get(ctx, q)
	if err != nil {
		rl.Errorf("listing active tenders for organization %s failed: %v", c.cfg.OrgCode, err)
		return nil
	}
	if status < 200 || status > 299 {
		rl.Errorf("listing active tenders returned HTTP %d", status)
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		rl.Errorf("decoding tender listing failed: %v", err)
		return nil
	}
	if env.Codigo != 0 {
		rl.Errorf("tender listing returned API code %d: %s", env.Codigo, env.Mensaje)
		return nil
	}
	if env.emptyListing() {
		rl.Warnf("no active tenders listed for organization %s", c.cfg.OrgCode)
		return nil
	}

	var summaries []TenderSummary
	if err := json.Unmarshal(env.Listado, &summaries); err != nil {
		rl.Errorf("decoding tender listing entries failed: %v", err)
		return nil
	}

	rl.Infof("listed %d active tenders for organization %s", len(summaries), c.cfg.OrgCode)
	return summaries
}

// GetTenderDetail fetches the full detail for one tender. Transient
// failures (the API throttle code, non-2xx statuses, timeouts, network
// errors, parsed-but-empty listings) are retried up to the attempt
// ceiling with exponential backoff. A 2xx body that cannot be decoded as
// JSON is terminal: the data is malformed, not transient. After the
// ceiling the tender is given up with a diagnostic and nil is returned.
func (c *Client) GetTenderDetail(ctx context.Context, rl *runlog.Log, code string) *TenderDetail {
	q := url.Values{}
	q.Set("ticket", c.cfg.Ticket)
	q.Set("codigo", code)

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BackoffBase << uint(attempt)
			rl.Warnf("retrying tender %s in %s (attempt %d/%d)", code, delay, attempt+1, c.cfg.MaxAttempts)
			select {
			case <-ctx.Done():
				rl.Errorf("tender %s aborted: %v", code, ctx.Err())
				return nil
			case <-time.After(delay):
			}
		}

		detail, retryable, err := c.fetchDetail(ctx, q)
		if err == nil {
			return detail
		}
		if !retryable {
			rl.Errorf("tender %s: %v", code, err)
			return nil
		}
		rl.Warnf("tender %s: %v", code, err)
	}

	rl.Errorf("giving up on tender %s after %d attempts", code, c.cfg.MaxAttempts)
	return nil
}

// fetchDetail performs one attempt. The boolean reports whether the
// failure is transient and worth another attempt.
func (c *Client) fetchDetail(ctx context.Context, q url.Values) (*TenderDetail, bool, error) {
	body, status, err := c.get(ctx, q)
	if err != nil {
		// Timeouts and network-level failures are transient.
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, true, fmt.Errorf("unexpected status code: %d", status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("malformed response: %w", err)
	}
	if env.Codigo == codeRateLimited {
		return nil, true, fmt.Errorf("rate limited by API (code %d): %s", env.Codigo, env.Mensaje)
	}
	if env.Codigo != 0 {
		return nil, true, fmt.Errorf("API code %d: %s", env.Codigo, env.Mensaje)
	}
	if env.emptyListing() {
		return nil, true, fmt.Errorf("unexpected response: empty listing")
	}

	var details []TenderDetail
	if err := json.Unmarshal(env.Listado, &details); err != nil {
		return nil, false, fmt.Errorf("malformed listing: %w", err)
	}
	if len(details) == 0 {
		return nil, true, fmt.Errorf("unexpected response: empty listing")
	}

	return &details[0], false, nil
}

func (c *Client) get(ctx context.Context, q url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}
