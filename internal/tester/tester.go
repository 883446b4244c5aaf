package tester

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/sandbox"
	"github.com/USA-RedDragon/rpc-tester/internal/transport"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrBusy             = errors.New("a request is already in flight for this session")
	ErrSandboxDisabled  = errors.New("the sandbox is disabled")
	ErrUnknownExample   = errors.New("unknown sandbox example")
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrEndpointInvalid  = errors.New("endpoint is not a valid URL")
	ErrMethodRequired   = errors.New("method is required")
	ErrNothingSent      = errors.New("nothing has been sent yet")
)

// Recorder keeps finished round trips beyond the session's last result.
type Recorder interface {
	Record(ctx context.Context, sessionID string, result *Result) error
}

// Tester owns the sessions and the pieces every session shares.
type Tester struct {
	config    *config.Config
	transport *transport.Transport
	evaluator *sandbox.Evaluator
	fetcher   sandbox.Fetcher
	metrics   *metrics.Metrics
	bus       *events.EventBus
	recorder  Recorder
	sessions  *xsync.MapOf[string, *Session]
	now       func() time.Time
}

// New builds a Tester. recorder may be nil.
func New(config *config.Config, metrics *metrics.Metrics, bus *events.EventBus, recorder Recorder) (*Tester, error) {
	evaluator, err := sandbox.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox evaluator: %w", err)
	}
	return &Tester{
		config:    config,
		transport: transport.New(),
		evaluator: evaluator,
		fetcher:   sandbox.NewHTTPFetcher(),
		metrics:   metrics,
		bus:       bus,
		recorder:  recorder,
		sessions:  xsync.NewMapOf[string, *Session](),
		now:       time.Now,
	}, nil
}

func (t *Tester) DefaultEndpoint() string {
	return t.config.Tester.DefaultEndpoint
}

func (t *Tester) SandboxEnabled() bool {
	return t.config.Tester.Sandbox.Enabled
}

func (t *Tester) NewSession() *Session {
	s := newSession(t, uuid.NewString())
	t.sessions.Store(s.id, s)
	t.metrics.IncrementActiveSessions()
	slog.Debug("Session opened", "session", s.id)
	return s
}

// Session looks a session up and marks it as used.
func (t *Tester) Session(id string) (*Session, error) {
	s, ok := t.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

func (t *Tester) CloseSession(id string) error {
	if _, loaded := t.sessions.LoadAndDelete(id); !loaded {
		return ErrSessionNotFound
	}
	t.metrics.DecrementActiveSessions()
	t.bus.CloseSession(id)
	slog.Debug("Session closed", "session", id)
	return nil
}

func (t *Tester) SessionCount() int {
	return t.sessions.Size()
}

// Sweep closes sessions idle for longer than idle. Busy sessions are kept
// so an in-flight result still has somewhere to land.
func (t *Tester) Sweep(idle time.Duration) int {
	cutoff := t.now().Add(-idle)
	var closed int
	t.sessions.Range(func(id string, s *Session) bool {
		if !s.lastUsed().Before(cutoff) {
			return true
		}
		// A swept session keeps its busy flag, so a caller still holding
		// it gets ErrBusy instead of sending on a closed session.
		if !s.busy.CompareAndSwap(false, true) {
			return true
		}
		if !s.lastUsed().Before(cutoff) {
			s.busy.Store(false)
			return true
		}
		if err := t.CloseSession(id); err != nil {
			s.busy.Store(false)
			return true
		}
		closed++
		return true
	})
	if closed > 0 {
		slog.Info("Closed idle sessions", "count", closed)
	}
	return closed
}
