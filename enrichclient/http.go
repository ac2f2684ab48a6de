package enrichclient

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/gurre/leadpipe/metrics"
)

const (
	pollInterval = 5 * time.Second
	maxRetries   = 5
)

// HTTPClient is a Client implementation against a remote enrichment API
// shaped like the original's async-submit/poll protocol for lead
// enrichment and a direct synchronous call for email discovery.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	maxWait    time.Duration
	metrics    *metrics.Metrics
}

// NewHTTPClient constructs an HTTPClient. requestsPerSecond bounds the
// client-side call rate; maxWait bounds how long EnrichLead polls an async
// job before giving up. m may be nil, in which case calls record nothing.
func NewHTTPClient(baseURL, apiKey string, requestTimeout, maxWait time.Duration, requestsPerSecond float64, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxWait:    maxWait,
		metrics:    m,
	}
}

// recordCall observes one enrichment client call's latency and outcome,
// labeled by operation ("enrich_lead"/"find_email"). Latency spans the
// whole call including retries and, for EnrichLead, the poll loop.
func (c *HTTPClient) recordCall(operation, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.EnrichmentCalls.WithLabelValues(operation, outcome).Inc()
	c.metrics.EnrichmentLatency.Observe(time.Since(start).Seconds())
}

// EnrichLead submits an async enrichment job, then polls job-status until
// it resolves or maxWait elapses.
func (c *HTTPClient) EnrichLead(ctx context.Context, leadInfo map[string]string, structFields map[string]string) (Result, error) {
	start := time.Now()
	payload := map[string]any{"lead_info": leadInfo}
	if len(structFields) > 0 {
		payload["struct"] = structFields
	}

	var submitted struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	}
	if err := c.post(ctx, "/enrich-lead-async", payload, &submitted); err != nil {
		c.recordCall("enrich_lead", "error", start)
		return Result{Success: false, Detail: fmt.Sprintf("submit enrich-lead job: %v", err)}, nil
	}
	taskID := submitted.TaskID
	if taskID == "" {
		taskID = submitted.ID
	}

	deadline := time.Now().Add(c.maxWait)
	for {
		var status struct {
			Status string         `json:"status"`
			Result map[string]any `json:"result"`
			Data   map[string]any `json:"data"`
			Error  string         `json:"error"`
		}
		if err := c.get(ctx, "/job-status/"+taskID, &status); err != nil {
			c.recordCall("enrich_lead", "error", start)
			return Result{Success: false, Detail: fmt.Sprintf("poll job %s: %v", taskID, err)}, nil
		}

		switch status.Status {
		case "completed", "complete", "done", "success":
			data := status.Result
			if data == nil {
				data = status.Data
			}
			c.recordCall("enrich_lead", "success", start)
			return Result{Success: true, Data: data}, nil
		case "failed", "error":
			detail := status.Error
			if detail == "" {
				detail = "job failed"
			}
			c.recordCall("enrich_lead", "failure", start)
			return Result{Success: false, Detail: detail}, nil
		}

		if time.Now().After(deadline) {
			c.recordCall("enrich_lead", "timeout", start)
			return Result{Success: false, Detail: fmt.Sprintf("job %s timed out after %s", taskID, c.maxWait)}, nil
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			c.recordCall("enrich_lead", "error", start)
			return Result{}, ctx.Err()
		}
	}
}

// FindEmail issues a single synchronous find-email request.
func (c *HTTPClient) FindEmail(ctx context.Context, lead map[string]string, mode string) (Result, error) {
	start := time.Now()
	payload := map[string]any{"lead": lead, "mode": mode}

	var data map[string]any
	if err := c.post(ctx, "/find-email", payload, &data); err != nil {
		c.recordCall("find_email", "failure", start)
		return Result{Success: false, Detail: err.Error()}, nil
	}
	c.recordCall("find_email", "success", start)
	return Result{Success: true, Data: data}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.doWithRetry(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, http.MethodGet, path, nil, out)
}

// doWithRetry issues one HTTP request, retrying transient upstream failures
// (429 and 5xx) with jittered exponential backoff, grounded on the
// teacher's isThrottlingError/backoffWait pattern: throttling-shaped
// errors retry up to maxRetries, then surface as a plain error the calling
// block absorbs as UPSTREAM_FAILURE.
func (c *HTTPClient) doWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if !backoffWait(ctx, attempt-1) {
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader *bytes.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if isRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream returned status %d", resp.StatusCode)
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("upstream returned status %d", resp.StatusCode)
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return fmt.Errorf("exceeded %d retries: %w", maxRetries, lastErr)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// backoffWait sleeps for an exponentially increasing duration with jitter.
// Returns false if the context is cancelled during the wait.
func backoffWait(ctx context.Context, attempt int) bool {
	base := 200 * time.Millisecond
	maxDelay := 10 * time.Second

	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := time.Duration(rand.Int64N(int64(delay) + 1))
	delay += jitter

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
