package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/vocdoni/confidential-fundraiser/api"
	"github.com/vocdoni/confidential-fundraiser/log"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries this enables Request() to handle the situation where the server connection fails.
	// Only GET requests are retried.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second

	retryDelay = 500 * time.Millisecond
)

// HTTPclient is the fundraiser node API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
}

// New connects to the API host and checks it answers the ping endpoint.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if err := c.ping(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetHostAddr configures the host address of the API server.
func (c *HTTPclient) SetHostAddr(host *url.URL) error {
	c.host = host
	return c.ping()
}

func (c *HTTPclient) ping() error {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return nil
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	if n < 1 {
		n = 1
	}
	c.retries = n
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// Request performs a `method` type raw request to the endpoint specified in urlPath parameter.
// Method is either GET or POST. If POST, a JSON struct should be attached.  Returns the response,
// the status code and an error.
//
// Supports query parameters via `params` slice. If the slice is not empty, it should contain pairs of strings;
// the first element of each pair is the key, and the second element is the value.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	return c.RequestContext(context.Background(), method, jsonBody, params, urlPath...)
}

// RequestContext is Request bound to ctx. Connection failures of GET
// requests are retried until ctx is done. Any other method is sent once,
// since a lost answer does not mean the server did not apply it. Server
// answers, errors included, are never retried.
func (c *HTTPclient) RequestContext(ctx context.Context, method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)
	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	// pairs of [key, value], a trailing key without value is ignored
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}

	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	attempts := 1
	if method == HTTPGET {
		attempts = c.retries
	}
	var resp *http.Response
	for i := 1; i <= attempts; i++ {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, rerr := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if rerr != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", rerr)
		}
		req.Header = headers

		resp, err = c.c.Do(req)
		if err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "attempts", attempts)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed after %d attempts: %w", attempts, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// call performs the request and decodes the answer into out. Non 200
// answers are returned as api.Error values, so they match the entries of
// the API error catalogue with errors.Is.
func (c *HTTPclient) call(ctx context.Context, method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.RequestContext(ctx, method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := api.Error{}
		if jerr := json.Unmarshal(data, &apiErr); jerr != nil || apiErr.Err == nil {
			return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, bytes.TrimSpace(data))
		}
		apiErr.HTTPstatus = status
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

// IsAPIError reports whether err is an answer of the API, as opposed to a
// transport failure.
func IsAPIError(err error) bool {
	var apiErr api.Error
	return errors.As(err, &apiErr)
}
