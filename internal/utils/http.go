package utils

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// No client timeout: a request lives exactly as long as the caller's context.
var client = http.Client{}

func HTTPRequest(ctx context.Context, method string, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &http.Response{}, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return &http.Response{}, err
	}
	return resp, nil
}

// StatusText returns the reason phrase the server sent, falling back to
// the standard text for the code.
func StatusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
