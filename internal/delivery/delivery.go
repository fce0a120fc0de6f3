package delivery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crashfeed/reporter/internal/service/models/report"
	"github.com/spf13/viper"
)

// Client sends serialized report payloads to a destination endpoint.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new delivery client.
func NewClient() *Client {
	timeoutSeconds := viper.GetInt("delivery.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 10
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

// Send posts the payload to the destination endpoint with the destination's
// credential. Returns true only for a 2xx response; ordinary network
// failures are reported as false, never as an error.
func (c *Client) Send(ctx context.Context, payload string, dest report.Destination) bool {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		dest.Endpoint,
		strings.NewReader(payload),
	)
	if err != nil {
		slog.Error("Failed to build delivery request", "endpoint", dest.Endpoint, "error", err)

		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ApiKey", dest.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Failed to deliver report", "endpoint", dest.Endpoint, "error", err)

		return false
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Report rejected by endpoint",
			"endpoint", dest.Endpoint,
			"status", resp.StatusCode,
		)

		return false
	}

	return true
}
