package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"danmakuproxy/pkg/logger"
)

// NewHTTPClient builds the outbound client shared by every adapter,
// grounded in the teacher's api_service.go NewAPIService client: bounded
// redirects, a descriptive User-Agent, and a per-call timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// fetch performs a GET and returns the body, converting every failure mode
// into an error the caller is expected to log-and-empty rather than
// propagate (spec/7 point 3: upstream failures never fail the request).
func fetch(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; danmakuproxy/1.0)")
	req.Header.Set("Accept", "application/json, text/html, */*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}

// logAndEmpty is the adapter-boundary error absorption point spec/7
// describes: log once, return a zero-value result, never an error that
// would otherwise bubble into the orchestrator's fan-out.
func logAndEmpty(sourceName, op string, err error) {
	logger.WithFields(logger.Fields{"source": sourceName, "op": op}).Warnf("upstream call failed: %v", err)
}
