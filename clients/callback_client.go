package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/litespace/compositor/config"
	xlog "github.com/litespace/compositor/log"
	"github.com/litespace/compositor/metrics"
)

type StatusClient interface {
	SendCompositionStatus(ctx context.Context, msg CompositionStatusMessage) error
}

// StatusFunc adapts a plain function to a StatusClient
type StatusFunc func(ctx context.Context, msg CompositionStatusMessage) error

func (f StatusFunc) SendCompositionStatus(ctx context.Context, msg CompositionStatusMessage) error {
	return f(ctx, msg)
}

type CallbackClient struct {
	httpClient *http.Client
	headers    map[string]string
}

func NewCallbackClient(headers map[string]string) CallbackClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2                          // Retry a maximum of this+1 times
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 1 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: 5 * time.Second, // Give up on requests that take more than this long
	}
	client.CheckRetry = metrics.HttpRetryHook
	client.Logger = xlog.NewRetryableHTTPLogger()

	return CallbackClient{
		httpClient: client.StandardClient(),
		headers:    headers,
	}
}

// SendCompositionStatus posts msg to msg.URL. Messages without a URL are dropped.
func (c CallbackClient) SendCompositionStatus(ctx context.Context, msg CompositionStatusMessage) error {
	if msg.URL == "" {
		return nil
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = config.Clock.GetTimestampUTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal composition status: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request to %q: %w", msg.URL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := metrics.MonitorRequest(metrics.Metrics.CompositionCallback, c.httpClient, req)
	if err != nil {
		return fmt.Errorf("failed to send callback to %q: %w", msg.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to send callback to %q. HTTP Code: %d", msg.URL, resp.StatusCode)
	}
	return nil
}
