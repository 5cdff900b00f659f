package metaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go-adrules/internal/config"

	"go.uber.org/zap"
)

const maxRetries = 3

// Client talks to the Meta Graph API. Transport-level concerns (retry on
// rate limits, cursor pagination, token redaction) live here so callers
// only see typed results and final errors.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	sleep   func(time.Duration) // overridable in tests
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GraphAPIBase, "/"),
		http: &http.Client{
			Timeout: time.Duration(cfg.GraphTimeoutSec) * time.Second,
		},
		log:   log,
		sleep: time.Sleep,
	}
}

var tokenPattern = regexp.MustCompile(`access_token=[^&]+`)

func safeURL(u string) string {
	return tokenPattern.ReplaceAllString(u, "access_token=***")
}

func (c *Client) buildURL(path string, params url.Values) string {
	return c.baseURL + path + "?" + params.Encode()
}

// page is the standard list envelope: data plus an optional next cursor
type page struct {
	Data   json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *GraphError `json:"error"`
}

func (c *Client) requestJSON(ctx context.Context, rawURL string) (*page, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			backoff := time.Duration(1<<attempt) * 500 * time.Millisecond
			c.log.Warn("Network error calling Graph API, retrying",
				zap.String("url", safeURL(rawURL)),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			c.sleep(backoff)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			lastErr = fmt.Errorf("decoding graph response: %w", err)
			continue
		}

		if p.Error != nil {
			if p.Error.NoRetry() {
				c.log.Error("Graph API rejected request (no retry)",
					zap.String("url", safeURL(rawURL)),
					zap.Int("code", p.Error.Code))
				return nil, p.Error
			}
			if p.Error.RateLimited() && attempt < maxRetries {
				backoff := time.Duration(1<<attempt) * 800 * time.Millisecond
				c.log.Warn("Rate limit detected, retrying",
					zap.Int("code", p.Error.Code),
					zap.Int("subcode", p.Error.Subcode),
					zap.Duration("backoff", backoff))
				c.sleep(backoff)
				lastErr = p.Error
				continue
			}
			return nil, p.Error
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("graph api: HTTP %d", resp.StatusCode)
			if attempt < maxRetries {
				c.sleep(time.Duration(1<<attempt) * 500 * time.Millisecond)
				continue
			}
			return nil, lastErr
		}

		return &p, nil
	}

	return nil, fmt.Errorf("graph api request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// fetchAll follows paging.next cursors and concatenates the data arrays
func (c *Client) fetchAll(ctx context.Context, rawURL string, collect func(json.RawMessage) error) error {
	next := rawURL
	for next != "" {
		p, err := c.requestJSON(ctx, next)
		if err != nil {
			return err
		}
		if len(p.Data) > 0 {
			if err := collect(p.Data); err != nil {
				return err
			}
		}
		next = p.Paging.Next
	}
	return nil
}

const campaignFields = "id,name,status,objective,buying_type,daily_budget,lifetime_budget,start_time,stop_time,effective_status,configured_status"

// GetCampaigns fetches every campaign in the account, following pagination
func (c *Client) GetCampaigns(ctx context.Context, accountID, token string) ([]Campaign, error) {
	params := url.Values{}
	params.Set("fields", campaignFields)
	params.Set("limit", "500")
	params.Set("access_token", token)

	u := c.buildURL("/"+accountID+"/campaigns", params)
	c.log.Debug("Fetching campaigns", zap.String("account_id", accountID))

	var out []Campaign
	err := c.fetchAll(ctx, u, func(data json.RawMessage) error {
		var batch []Campaign
		if err := json.Unmarshal(data, &batch); err != nil {
			return err
		}
		out = append(out, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching campaigns for %s: %w", accountID, err)
	}
	return out, nil
}

// InsightOptions narrows an insights request to the fields a caller needs
type InsightOptions struct {
	Fields    []string
	Filtering string // raw JSON filtering expression, optional
}

// GetInsights fetches aggregated insight rows at the given level for a
// named relative reporting window (date preset).
func (c *Client) GetInsights(ctx context.Context, accountID, token, level, datePreset string, opts InsightOptions) ([]InsightRow, error) {
	fields := "campaign_id,account_currency,impressions,clicks,spend,cpc,cpm,ctr,reach,frequency,actions,cost_per_action_type"
	if len(opts.Fields) > 0 {
		fields = strings.Join(opts.Fields, ",")
	}
	if datePreset == "" {
		datePreset = "today"
	}

	params := url.Values{}
	params.Set("level", level)
	params.Set("fields", fields)
	params.Set("date_preset", datePreset)
	params.Set("limit", "500")
	params.Set("access_token", token)
	if opts.Filtering != "" {
		params.Set("filtering", opts.Filtering)
	}

	u := c.buildURL("/"+accountID+"/insights", params)
	c.log.Debug("Fetching insights",
		zap.String("account_id", accountID),
		zap.String("level", level),
		zap.String("date_preset", datePreset),
		zap.String("fields", fields))

	var out []InsightRow
	err := c.fetchAll(ctx, u, func(data json.RawMessage) error {
		var batch []InsightRow
		if err := json.Unmarshal(data, &batch); err != nil {
			return err
		}
		out = append(out, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching insights for %s: %w", accountID, err)
	}
	return out, nil
}

// UpdateStatus sets the status of a campaign (or any status-bearing object).
// The Graph API answers updates with a few different success shapes, all of
// which are accepted.
func (c *Client) UpdateStatus(ctx context.Context, objectID, status, token string) error {
	form := url.Values{}
	form.Set("status", status)
	form.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+objectID, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("updating %s: %w", objectID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var result struct {
		Success *bool       `json:"success"`
		ID      string      `json:"id"`
		Error   *GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err == nil {
		if result.Error != nil {
			return fmt.Errorf("updating %s: %w", objectID, result.Error)
		}
		if (result.Success != nil && *result.Success) || result.ID != "" {
			c.log.Debug("Object updated", zap.String("object_id", objectID), zap.String("status", status))
			return nil
		}
	}

	// A bare "true" body is also a success
	if strings.TrimSpace(string(body)) == "true" {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("updating %s: HTTP %d", objectID, resp.StatusCode)
	}

	c.log.Warn("Update returned an unexpected response shape, treating as success",
		zap.String("object_id", objectID))
	return nil
}
