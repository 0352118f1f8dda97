package responder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muurk/argo/internal/version"
)

// DefaultDeliveryTimeout bounds a single POST to a callback address.
const DefaultDeliveryTimeout = 5 * time.Second

// maxDrain is how much of a listener's reply body is read before closing.
const maxDrain = 4096

// Deliverer posts an encoded response to one callback URL.
type Deliverer interface {
	Deliver(ctx context.Context, url, contentType string, body []byte) error
}

// HTTPDeliverer delivers over HTTP POST.
type HTTPDeliverer struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Timeout bounds each delivery, on top of any deadline on ctx
	Timeout time.Duration
}

// NewHTTPDeliverer creates a deliverer with the given per-request timeout.
func NewHTTPDeliverer(timeout time.Duration) *HTTPDeliverer {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &HTTPDeliverer{
		HTTPClient: &http.Client{},
		Timeout:    timeout,
	}
}

// Deliver POSTs body to url. Any 2xx status is success.
func (d *HTTPDeliverer) Deliver(ctx context.Context, url, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Kind: DeliveryNetwork, URL: url, Message: "cannot build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &DeliveryError{Kind: DeliveryTimeout, URL: url, Message: fmt.Sprintf("no answer within %s", d.Timeout), Err: err}
		}
		return classify(err, url)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{
			Kind:       DeliveryHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("listener answered %s", resp.Status),
		}
	}
	return nil
}
