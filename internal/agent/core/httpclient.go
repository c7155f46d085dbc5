package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is a thin JSON-over-HTTP client with bounded retries and
// exponential backoff, shared by the agent tools.
type HTTPClient struct {
	client  *http.Client
	retries int
	backoff time.Duration
	cache   ToolCache
}

func NewHTTPClient(timeout time.Duration, retries int, backoff time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff == 0 {
		backoff = 300 * time.Millisecond
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}, retries: retries, backoff: backoff}
}

// WithCache returns a copy of the client that consults the given cache for
// GET responses.
func (c *HTTPClient) WithCache(cache ToolCache) *HTTPClient {
	cp := *c
	cp.cache = cache
	return &cp
}

func (c *HTTPClient) DoJSON(ctx context.Context, method, rawURL string, headers map[string]string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, rerr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			resp.Body.Close()
			if rerr != nil {
				lastErr = rerr
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if out == nil {
					return nil
				}
				return json.Unmarshal(b, out)
			} else {
				if len(b) > 4096 {
					b = b[:4096]
				}
				lastErr = errors.New(resp.Status + ": " + string(b))
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// GetJSON fetches rawURL with the given query params and decodes the JSON
// response into out. Successful bodies are cached when a cache is attached.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, params map[string]string, headers map[string]string, out any) error {
	full, err := URLWithParams(rawURL, params)
	if err != nil {
		return err
	}
	if c.cache != nil {
		if b, ok := c.cache.Get(ctx, full); ok {
			return json.Unmarshal(b, out)
		}
	}
	b, err := c.GetBytes(ctx, full, headers)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(ctx, full, b)
	}
	return json.Unmarshal(b, out)
}

// GetBytes fetches rawURL and returns the raw body. Used for non-JSON
// responses such as the NCBI esearch XML.
func (c *HTTPClient) GetBytes(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			b, rerr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			resp.Body.Close()
			if rerr != nil {
				lastErr = rerr
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return b, nil
			} else {
				if len(b) > 4096 {
					b = b[:4096]
				}
				lastErr = errors.New(resp.Status + ": " + string(b))
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// URLWithParams appends the query params to rawURL.
func URLWithParams(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
