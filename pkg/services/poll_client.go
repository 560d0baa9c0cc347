package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/streamweave/core/internal/config"
	"github.com/streamweave/core/pkg/logger"
)

// PollClient performs HTTP polls for api_poll jobs. Requests go
// through a circuit breaker so a flapping endpoint stops being hit
// while it recovers.
type PollClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	userAgent string
	logger    *logger.Logger
}

// PollResult is the opaque success payload recorded on the execution.
type PollResult struct {
	URL        string          `json:"url"`
	StatusCode int             `json:"status_code"`
	DurationMS int64           `json:"duration_ms"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// maxPollBody caps how much of a response is recorded on the execution
const maxPollBody = 64 * 1024

func NewPollClient(cfg *config.Config) *PollClient {
	log := logger.New("poll-client")

	settings := gobreaker.Settings{
		Name:    "api-poll",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Poll circuit breaker state changed")
		},
	}

	return &PollClient{
		client: &http.Client{
			Timeout: cfg.Poll.Timeout,
		},
		breaker:   gobreaker.NewCircuitBreaker(settings),
		userAgent: cfg.Poll.UserAgent,
		logger:    log,
	}
}

// Poll performs one HTTP request and returns the recorded result.
// Non-2xx status codes are failures.
func (c *PollClient) Poll(ctx context.Context, method, url string) (*PollResult, error) {
	if url == "" {
		return nil, fmt.Errorf("poll url is required")
	}
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doPoll(ctx, method, url)
	})

	duration := time.Since(start)

	if err != nil {
		c.logger.LogAPICall(method, url, 0, duration, err)
		return nil, err
	}

	poll := result.(*PollResult)
	poll.DurationMS = duration.Milliseconds()
	c.logger.LogAPICall(method, url, poll.StatusCode, duration, nil)
	return poll, nil
}

func (c *PollClient) doPoll(ctx context.Context, method, url string) (*PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	result := &PollResult{
		URL:        url,
		StatusCode: resp.StatusCode,
	}
	if json.Valid(body) {
		result.Body = json.RawMessage(body)
	}
	return result, nil
}
