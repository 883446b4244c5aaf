package tester

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/jsonrpc"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/params"
	"github.com/USA-RedDragon/rpc-tester/internal/presenter"
	"github.com/USA-RedDragon/rpc-tester/internal/registry"
	"github.com/USA-RedDragon/rpc-tester/internal/sandbox"
	"github.com/USA-RedDragon/rpc-tester/internal/transport"
	"github.com/go-errors/errors"
)

type Source string

const (
	SourceStructured Source = "structured"
	SourceCustom     Source = "custom"
	SourceSandbox    Source = "sandbox"
)

// SendInput is what the form captures. Method is a registry key, or a
// wire method name when the method is custom. Params is only read for
// custom methods.
type SendInput struct {
	Method string        `json:"method"`
	Custom bool          `json:"custom"`
	Fields params.Fields `json:"fields"`
	Params string        `json:"params"`
}

type TransportFailure struct {
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText,omitempty"`
	Message    string `json:"message"`
}

// Result is one finished round trip.
type Result struct {
	Source         Source            `json:"source"`
	Endpoint       string            `json:"endpoint"`
	Method         string            `json:"method"`
	Request        any               `json:"request"`
	StatusCode     int               `json:"statusCode"`
	StatusText     string            `json:"statusText,omitempty"`
	Response       any               `json:"response"`
	RPCError       *jsonrpc.Error    `json:"rpcError,omitempty"`
	TransportError *TransportFailure `json:"transportError,omitempty"`
	Warning        string            `json:"warning,omitempty"`
	Duration       time.Duration     `json:"-"`
	DurationMS     int64             `json:"durationMs"`
	CompletedAt    time.Time         `json:"completedAt"`
}

type Session struct {
	id       string
	tester   *Tester
	composer *jsonrpc.Composer
	busy     atomic.Bool
	used     atomic.Int64

	mu          sync.Mutex
	endpoint    string
	sandboxOpen bool
	script      string
	lastPayload any
	lastResult  *Result
}

func newSession(t *Tester, id string) *Session {
	s := &Session{
		id:       id,
		tester:   t,
		composer: jsonrpc.NewComposer(),
		endpoint: t.DefaultEndpoint(),
	}
	s.touch()
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) touch() {
	s.used.Store(s.tester.now().UnixNano())
}

func (s *Session) lastUsed() time.Time {
	return time.Unix(0, s.used.Load())
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() {
	s.busy.Store(false)
	s.touch()
}

func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *Session) SetEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ErrEndpointRequired
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointInvalid, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrEndpointInvalid, endpoint)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = endpoint
	return nil
}

func (s *Session) ResetEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = s.tester.DefaultEndpoint()
	return s.endpoint
}

// Send builds, composes and dispatches one request. Transport failures are
// part of the Result, the error return is reserved for requests that were
// never sent.
func (s *Session) Send(ctx context.Context, in SendInput) (*Result, error) {
	method := strings.TrimSpace(in.Method)
	if method == "" {
		return nil, ErrMethodRequired
	}

	target := registry.Resolve(method)
	if in.Custom {
		target = registry.Custom(method)
	}

	var (
		rpcParams []any
		source    = SourceStructured
	)
	if spec, ok := target.Known(); ok {
		rpcParams = params.Build(spec, in.Fields)
	} else {
		var err error
		rpcParams, err = params.BuildCustom(in.Params)
		if err != nil {
			s.tester.metrics.IncrementRejectedRequests(target.Method())
			return nil, err
		}
		source = SourceCustom
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	req := s.composer.Compose(target.Method(), rpcParams)
	s.mu.Lock()
	s.lastPayload = req
	s.mu.Unlock()

	return s.dispatch(ctx, source, req.Method, req), nil
}

func (s *Session) dispatch(ctx context.Context, source Source, method string, payload any) *Result {
	ctx = context.WithoutCancel(ctx)
	endpoint := s.Endpoint()

	s.tester.bus.Publish(events.RequestSentEvent{
		SessionID: s.id,
		Endpoint:  endpoint,
		Method:    method,
		Source:    string(source),
		Payload:   payload,
	})

	start := s.tester.now()
	resp, err := s.tester.transport.Send(ctx, endpoint, payload)
	elapsed := s.tester.now().Sub(start)

	result := &Result{
		Source:      source,
		Endpoint:    endpoint,
		Method:      method,
		Request:     payload,
		Duration:    elapsed,
		DurationMS:  elapsed.Milliseconds(),
		CompletedAt: s.tester.now(),
	}
	outcome := metrics.OutcomeOK
	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.StatusText = resp.StatusText
		result.Response = resp.Body
		if resp.ParseErr != nil {
			result.Warning = resp.ParseErr.Error()
			outcome = metrics.OutcomeParseError
		}
		if rpcErr, ok := jsonrpc.ExtractError(resp.Body); ok {
			result.RPCError = rpcErr
			outcome = metrics.OutcomeRPCError
		}
	}
	if err != nil {
		failure := &TransportFailure{Message: err.Error()}
		var tErr *transport.TransportError
		if errors.As(err, &tErr) {
			failure.StatusCode = tErr.StatusCode
			failure.StatusText = tErr.StatusText
		}
		result.TransportError = failure
		outcome = metrics.OutcomeTransportError
		slog.Warn("Request failed", "session", s.id, "method", method, "endpoint", endpoint, "error", err)
		s.tester.bus.Publish(events.TransportErrorEvent{
			SessionID:  s.id,
			Method:     method,
			StatusCode: failure.StatusCode,
			StatusText: failure.StatusText,
			Error:      failure.Message,
		})
	}
	if resp != nil {
		s.tester.bus.Publish(events.ResponseReceivedEvent{
			SessionID:  s.id,
			Method:     method,
			StatusCode: resp.StatusCode,
			DurationMS: elapsed.Milliseconds(),
			Response:   resp.Body,
			Warning:    result.Warning,
		})
	}
	s.tester.metrics.ObserveRequest(method, outcome, elapsed)

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	if s.tester.recorder != nil {
		if err := s.tester.recorder.Record(ctx, s.id, result); err != nil {
			slog.Warn("Failed to record history", "session", s.id, "method", method, "error", err)
		}
	}
	return result
}

// OpenSandbox returns the script being edited, seeding it from the last
// payload when the sandbox was closed.
func (s *Session) OpenSandbox() (string, error) {
	if !s.tester.SandboxEnabled() {
		return "", ErrSandboxDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sandboxOpen {
		return s.script, nil
	}
	script := sandbox.DefaultScript
	if s.lastPayload != nil {
		seeded, err := sandbox.ScriptFor(s.lastPayload)
		if err != nil {
			slog.Warn("Failed to seed sandbox from last payload", "session", s.id, "error", err)
		} else {
			script = seeded
		}
	}
	s.script = script
	s.sandboxOpen = true
	return script, nil
}

// LoadExample replaces the current script.
func (s *Session) LoadExample(key string) (string, error) {
	if !s.tester.SandboxEnabled() {
		return "", ErrSandboxDisabled
	}
	example, ok := sandbox.LookupExample(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownExample, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = example.Script
	s.sandboxOpen = true
	return example.Script, nil
}

// LoadScript opens the sandbox on a script from outside the session, such as
// a saved one.
func (s *Session) LoadScript(script string) error {
	if !s.tester.SandboxEnabled() {
		return ErrSandboxDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
	s.sandboxOpen = true
	return nil
}

func (s *Session) CloseSandbox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = ""
	s.sandboxOpen = false
}

// RunSandbox evaluates script and sends the payload it binds. A script
// that fails never reaches the transport.
func (s *Session) RunSandbox(ctx context.Context, script string) (*Result, error) {
	if !s.tester.SandboxEnabled() {
		return nil, ErrSandboxDisabled
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	endpoint := s.Endpoint()
	s.mu.Lock()
	s.script = script
	s.sandboxOpen = true
	s.mu.Unlock()

	payload, err := s.tester.evaluator.Evaluate(context.WithoutCancel(ctx), script, sandbox.Capabilities{
		Endpoint: endpoint,
		Fetcher:  s.tester.fetcher,
	})
	if err != nil {
		s.tester.metrics.IncrementSandboxEvaluations(metrics.OutcomeRejected)
		s.tester.bus.Publish(events.SandboxErrorEvent{SessionID: s.id, Error: err.Error()})
		slog.Debug("Sandbox script rejected", "session", s.id, "error", err)
		return nil, err
	}
	s.tester.metrics.IncrementSandboxEvaluations(metrics.OutcomeOK)

	s.mu.Lock()
	s.lastPayload = payload
	s.mu.Unlock()

	method, _ := payload["method"].(string)
	return s.dispatch(ctx, SourceSandbox, method, payload), nil
}

type Snapshot struct {
	ID              string  `json:"id"`
	Endpoint        string  `json:"endpoint"`
	DefaultEndpoint string  `json:"defaultEndpoint"`
	Busy            bool    `json:"busy"`
	SandboxEnabled  bool    `json:"sandboxEnabled"`
	SandboxOpen     bool    `json:"sandboxOpen"`
	Script          string  `json:"script,omitempty"`
	LastPayload     any     `json:"lastPayload,omitempty"`
	LastResult      *Result `json:"lastResult,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:              s.id,
		Endpoint:        s.endpoint,
		DefaultEndpoint: s.tester.DefaultEndpoint(),
		Busy:            s.busy.Load(),
		SandboxEnabled:  s.tester.SandboxEnabled(),
		SandboxOpen:     s.sandboxOpen,
		Script:          s.script,
		LastPayload:     s.lastPayload,
		LastResult:      s.lastResult,
	}
}

type LastView struct {
	Result       *Result                `json:"result"`
	Presentation presenter.Presentation `json:"presentation"`
}

// Last presents the last response. The stored response is never touched.
func (s *Session) Last(mode presenter.Mode) (*LastView, error) {
	s.mu.Lock()
	result := s.lastResult
	s.mu.Unlock()
	if result == nil {
		return nil, ErrNothingSent
	}
	p, err := presenter.Present(result.Response, mode)
	if err != nil {
		return nil, err
	}
	return &LastView{Result: result, Presentation: p}, nil
}
