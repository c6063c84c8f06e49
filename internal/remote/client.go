package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// bodySnippet caps how much of an error response body is carried into the
// error message.
const bodySnippet = 300

// client is the HTTP layer shared by all adapters: one base URL, fixed
// headers or basic auth, a rate limiter, and uniform error classification.
type client struct {
	baseURL  string
	httpc    *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
	username string
	password string
	useBasic bool
}

func newClient(baseURL string, opts Options) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: opts.timeout()},
		limiter: rate.NewLimiter(opts.limit(), opts.burst()),
		headers: map[string]string{},
	}
}

func (c *client) setBasicAuth(username, password string) {
	c.username = username
	c.password = password
	c.useBasic = true
}

// do performs one rate-limited request and returns the response body.
// Every failure comes back as a *Error.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTimeout, URL: c.baseURL + path, Err: err}
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.useBasic {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnect, URL: reqURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindStatus,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Body:       snippet(data),
		}
	}
	return data, nil
}

// getJSON performs a GET and decodes the response into out.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// putJSON performs a PUT with a JSON body.
func (c *client) putJSON(ctx context.Context, path string, body any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body)
	return err
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnect
}

func snippet(data []byte) string {
	s := string(data)
	if len(s) > bodySnippet {
		s = s[:bodySnippet]
	}
	return s
}
