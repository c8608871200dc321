// Package survey is the HTTP adapter for the state survey platform's
// activity feed.
package survey

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tlaxclima/acciones-service/internal/domain"
	"github.com/tlaxclima/acciones-service/internal/observability"
)

// Client fetches raw activity submissions from the survey API.
type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a survey API client with a per-request timeout.
func NewClient(url string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		// The deadline is enforced per request via context so it can be
		// classified as a TimeoutError; the client itself has no timeout.
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchActivities performs one GET against the activity feed and decodes
// the response. Failures are typed: TimeoutError, NetworkError, HTTPError,
// or DataShapeError.
func (c *Client) FetchActivities(ctx context.Context) ([]domain.RawActivity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.FetchAttempts.WithLabelValues("timeout").Inc()
			return nil, &TimeoutError{Timeout: c.timeout}
		}
		c.metrics.FetchAttempts.WithLabelValues("network").Inc()
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.FetchAttempts.WithLabelValues("http").Inc()
		return nil, newHTTPError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.FetchAttempts.WithLabelValues("timeout").Inc()
			return nil, &TimeoutError{Timeout: c.timeout}
		}
		c.metrics.FetchAttempts.WithLabelValues("network").Inc()
		return nil, &NetworkError{Err: err}
	}

	activities, err := c.decodeActivities(body)
	if err != nil {
		c.metrics.FetchAttempts.WithLabelValues("data_shape").Inc()
		return nil, err
	}

	c.metrics.FetchAttempts.WithLabelValues("success").Inc()
	c.logger.Debug("fetched survey activities", "count", len(activities))
	return activities, nil
}

// decodeActivities splits the body into individual submissions and decodes
// each one on its own. A record with an unexpected field type (the
// dependency field has shipped as both number and free text) drops only
// itself; its siblings survive. DataShapeError is reserved for a body whose
// overall shape is unusable.
func (c *Client) decodeActivities(body []byte) ([]domain.RawActivity, error) {
	records, err := splitRecords(body)
	if err != nil {
		return nil, err
	}

	activities := make([]domain.RawActivity, 0, len(records))
	for i, record := range records {
		var a domain.RawActivity
		if err := json.Unmarshal(record, &a); err != nil {
			c.metrics.RecordsSkipped.WithLabelValues("decode").Inc()
			c.logger.Warn("skipping malformed submission", "index", i, "error", err)
			continue
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// splitRecords accepts both response shapes the platform has shipped:
// an {"activities": [...]} envelope and a bare array.
func splitRecords(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Activities []json.RawMessage `json:"activities"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Activities != nil {
		return envelope.Activities, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	return nil, &DataShapeError{Reason: "body is neither an activities envelope nor an array"}
}
