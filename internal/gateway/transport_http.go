package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"tipbridge/internal/custom_err"
)

// HTTPTransport posts the JSON-encoded request to {baseURL}/{operation}/ on a local engine API.
type HTTPTransport struct {
	baseURL string
	http    *http.Client
}

// NewHTTPTransport leaves the client timeout unset; every call is bounded by its context.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (t *HTTPTransport) Do(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/", t.baseURL, req.Operation())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, classifyNetError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		// Engines report failures with a non-200 status and a regular error envelope.
		if res, err := normalize(data); err == nil && !res.OK {
			return data, nil
		}
		return nil, fmt.Errorf("%w: http status %d", custom_err.ErrProtocol, resp.StatusCode)
	}
	return data, nil
}

func classifyNetError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("http request: %w", ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("http request: %w", context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %v", custom_err.ErrConnection, err)
}
