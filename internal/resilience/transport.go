package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one outbound upstream call. Method defaults to GET.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the upstream's answer with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a single upstream request. Implementations own the
// per-attempt timeout.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport sends requests over net/http.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

func NewHTTPTransport(timeout time.Duration, userAgent string) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		// A request we cannot even construct will never succeed.
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if t.userAgent != "" && hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(hr)
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read body", Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// StatusError converts a non-2xx response into an *APIError carrying any
// Retry-After hint. 2xx responses yield nil.
func StatusError(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}
