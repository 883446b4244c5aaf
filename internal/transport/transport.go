package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/USA-RedDragon/rpc-tester/internal/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TransportError reports a non-2xx status, or a request that never got a
// status at all (StatusCode 0, Err set).
type TransportError struct {
	StatusCode int
	StatusText string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, e.StatusText)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseParseError marks a body that was not JSON. It never fails a call,
// the body is still returned as {"raw": text}.
type ResponseParseError struct {
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("response is not valid JSON: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

type Response struct {
	StatusCode int
	StatusText string
	// Body is the decoded JSON, or {"raw": Text} when decoding failed.
	Body     any
	Text     string
	ParseErr *ResponseParseError
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Transport struct {
	tracer trace.Tracer
}

func New() *Transport {
	return &Transport{
		tracer: otel.Tracer("github.com/USA-RedDragon/rpc-tester/internal/transport"),
	}
}

// Send POSTs payload to endpoint as JSON. Status and body are independent:
// a non-2xx response returns both the parsed body and a *TransportError.
// Neither endpoint nor payload is modified.
func (t *Transport) Send(ctx context.Context, endpoint string, payload any) (*Response, error) {
	ctx, span := t.tracer.Start(ctx, "jsonrpc.send")
	defer span.End()
	if u, err := url.Parse(endpoint); err == nil {
		span.SetAttributes(attribute.String("rpc.endpoint.host", u.Host))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal payload")
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := utils.HTTPRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, &TransportError{StatusCode: resp.StatusCode, StatusText: utils.StatusText(resp), Err: err}
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		StatusText: utils.StatusText(resp),
		Text:       string(raw),
	}
	if err := utils.DecodeJSON(raw, &out.Body); err != nil {
		out.Body = map[string]any{"raw": out.Text}
		out.ParseErr = &ResponseParseError{Err: err}
	}

	if !out.OK() {
		span.SetStatus(codes.Error, out.StatusText)
		return out, &TransportError{StatusCode: out.StatusCode, StatusText: out.StatusText}
	}
	return out, nil
}
