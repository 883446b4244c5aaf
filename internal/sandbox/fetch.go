package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/utils"
)

type FetchOptions struct {
	Method  string
	Headers map[string]string
	Body    any
}

type FetchResult struct {
	Status     int
	StatusText string
	OK         bool
	Body       any
}

func (r FetchResult) toMap() map[string]any {
	return map[string]any{
		"status":     r.Status,
		"statusText": r.StatusText,
		"ok":         r.OK,
		"body":       r.Body,
	}
}

// Fetcher is the network capability handed to scripts.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (FetchResult, error)
}

type HTTPFetcher struct{}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (FetchResult, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}
	headers := map[string]string{}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return FetchResult{}, fmt.Errorf("fetch body is not JSON-serializable: %w", err)
		}
		body = strings.NewReader(string(data))
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	resp, err := utils.HTTPRequest(ctx, method, url, body, headers)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch failed to read body: %w", err)
	}

	res := FetchResult{
		Status:     resp.StatusCode,
		StatusText: utils.StatusText(resp),
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if err := json.Unmarshal(raw, &res.Body); err != nil {
		res.Body = string(raw)
	}
	return res, nil
}

func parseFetchOptions(raw map[string]any) (FetchOptions, error) {
	var opts FetchOptions
	if m, ok := raw["method"]; ok {
		s, ok := m.(string)
		if !ok {
			return opts, fmt.Errorf("fetch option method must be a string")
		}
		opts.Method = strings.ToUpper(s)
	}
	if h, ok := raw["headers"]; ok {
		headers, ok := h.(map[string]any)
		if !ok {
			return opts, fmt.Errorf("fetch option headers must be a map")
		}
		opts.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			opts.Headers[k] = fmt.Sprint(v)
		}
	}
	opts.Body = raw["body"]
	return opts, nil
}
