package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sakashimaa/go-pet-project/pkg/response"
	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 1 << 20

type httpClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// doJSON performs one bounded call and classifies the outcome: 404 is ErrNotFound, other 4xx and
// success=false answers are ErrRejected, everything that may succeed on a second try is transient.
func doJSON[T any](ctx context.Context, c *httpClient, method, path string, body any) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return zero, resilience.Transient(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return zero, resilience.Transient(fmt.Errorf("%s %s: failed to read body: %w", method, path, err))
	}

	var envelope response.Envelope[T]
	decodeErr := json.Unmarshal(raw, &envelope)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return zero, resilience.Transient(fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return zero, fmt.Errorf("%w: %s", ErrNotFound, messageOr(envelope.Message, path))
	case resp.StatusCode >= http.StatusBadRequest:
		return zero, fmt.Errorf("%w: %s", ErrRejected, messageOr(envelope.Message, resp.Status))
	}

	if decodeErr != nil {
		return zero, fmt.Errorf("%w: malformed response from %s %s: %w", ErrUnavailable, method, path, decodeErr)
	}

	if !envelope.Success {
		return zero, fmt.Errorf("%w: %s", ErrRejected, messageOr(envelope.Message, "downstream reported failure"))
	}

	return envelope.Data, nil
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}

// classify maps whatever the policy returned onto the gateway error set.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRejected), errors.Is(err, ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
