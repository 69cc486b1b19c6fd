package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/structuredesk/riskwatch/internal/config"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/metrics"
	"github.com/structuredesk/riskwatch/internal/ratelimit"
)

// Client pulls raw events from the upstream feed aggregator. The aggregator
// owns parsing of the underlying market-data, corporate-action and news
// sources; this client only sees the normalized payload shape.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a feed client.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.FeedBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(cfg.FeedRPS),
	}
}

// FetchEvents fetches raw events published after the since timestamp.
func (c *Client) FetchEvents(ctx context.Context, since time.Time) ([]event.RawEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	events, err := c.fetch(ctx, since)
	metrics.RecordFeedPoll(time.Since(start), err)
	return events, err
}

func (c *Client) fetch(ctx context.Context, since time.Time) ([]event.RawEvent, error) {
	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var events []event.RawEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return events, nil
}
