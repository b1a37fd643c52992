package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/retry"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Timeout time.Duration
	Retry   retry.Policy
}

type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether a response status is worth another attempt.
func Retryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Check validates a 2xx response. A non-nil error makes the attempt retryable.
type Check func(resp *Response) error

type Client struct {
	http   *http.Client
	policy retry.Policy
	logger logrus.FieldLogger
}

func New(cfg Config) *Client {
	return NewWithHTTPClient(cfg, nil)
}

// NewWithHTTPClient wraps base, which carries transport settings such as TLS.
func NewWithHTTPClient(cfg Config, base *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	client.Timeout = timeout

	return &Client{
		http:   &client,
		policy: cfg.Retry,
		logger: logrus.WithField("module", "httpclient"),
	}
}

func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	return c.DoWithCheck(ctx, req, nil)
}

func (c *Client) DoWithCheck(ctx context.Context, req *Request, check Check) (*Response, error) {
	var out *Response
	err := retry.Do(ctx, c.policy, func(ctx context.Context, _ int) error {
		resp, err := c.once(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
			if Retryable(resp.StatusCode) {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}
		if check != nil {
			if err := check(resp); err != nil {
				return err
			}
		}
		out = resp
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method":  req.Method,
			"url":     req.URL,
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Warn("http request failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) once(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
