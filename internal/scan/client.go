// Package scan streams upload content to the external malware-scanning
// service. The scanner consumes the stream, scans it, and later POSTs the
// clean content back to the callback URL it was handed.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filesafe-backend/internal/shared/telemetry"
)

var (
	// ErrScanTimeout indicates the dispatch exceeded its end-to-end deadline.
	ErrScanTimeout = errors.New("scan service timeout")
	// ErrScanRejected indicates the scanner refused the stream.
	ErrScanRejected = errors.New("scan service rejected upload")
)

// Dispatcher hands an upload stream to the scanning service. A nil error
// means only that the scanner accepted the stream for processing, not that
// scanning has completed.
type Dispatcher interface {
	Dispatch(ctx context.Context, content io.Reader, scanRef, filename, contentType string) error
}

// Client implements Dispatcher over a streaming HTTP POST.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	callbackBase string
	timeout      time.Duration
}

// NewClient constructs a scan client. timeout bounds each dispatch call
// end to end; callbackBase is the externally reachable base URL of this
// service.
func NewClient(endpoint, callbackBase string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{},
		endpoint:     endpoint,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		timeout:      timeout,
	}
}

// Dispatch streams content to the scan endpoint. The body is handed to the
// HTTP transport as-is, so the transfer is incremental; the full payload is
// never held in memory.
func (c *Client) Dispatch(ctx context.Context, content io.Reader, scanRef, filename, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, content)
	if err != nil {
		return fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("targetUrl", c.CallbackURL(scanRef))
	req.Header.Set("scan-reference-id", scanRef)
	req.Header.Set("original-filename", filename)
	req.Header.Set("original-content-type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrScanTimeout, err)
		}
		return fmt.Errorf("send to scan service: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrScanRejected, resp.StatusCode)
	}

	telemetry.Info("scan.dispatched", map[string]any{
		"scan_ref": scanRef,
		"filename": filename,
	})
	return nil
}

// CallbackURL returns the address the scanner will POST clean content to.
func (c *Client) CallbackURL(scanRef string) string {
	return c.callbackBase + "/api/v1/files/upload-scanned?ref=" + url.QueryEscape(scanRef)
}

var _ Dispatcher = (*Client)(nil)
