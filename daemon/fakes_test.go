package daemon

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/internal/clock"
	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/protocol/protocoltest"
)

// fakeServer is an owned server whose exit the test controls.
type fakeServer struct {
	pid      int
	mu       sync.Mutex
	exited   bool
	code     int
	byOwner  bool
	listener *protocoltest.Server
}

func (s *fakeServer) PID() int { return s.pid }

func (s *fakeServer) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.exited
}

func (s *fakeServer) ExitStatus() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.exited
}

func (s *fakeServer) FailedOnItsOwn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited && s.code != 0 && !s.byOwner
}

// exit simulates the server process ending on its own.
func (s *fakeServer) exit(code int) {
	s.mu.Lock()
	s.exited = true
	s.code = code
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
}

// fakeLauncher records starts. With listen set, Start brings up an
// in-process lint server on the requested port.
type fakeLauncher struct {
	t        *testing.T
	listen   bool
	handler  protocoltest.Handler
	startErr error

	mu      sync.Mutex
	starts  int
	stops   int
	servers []*fakeServer
}

func (l *fakeLauncher) Start(_ context.Context, port int) (Server, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
	if l.startErr != nil {
		return nil, l.startErr
	}

	srv := &fakeServer{pid: 10000 + l.starts}
	if l.listen {
		handler := l.handler
		if handler == nil {
			handler = protocoltest.Echo
		}
		ln, err := protocoltest.NewServerAt("127.0.0.1:"+strconv.Itoa(port), handler)
		require.NoError(l.t, err)
		srv.listener = ln
		l.t.Cleanup(func() { ln.Close() })
	}
	l.servers = append(l.servers, srv)
	return srv, nil
}

func (l *fakeLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
	for _, s := range l.servers {
		s.mu.Lock()
		if !s.exited {
			s.exited = true
			s.code = -1
			s.byOwner = true
		}
		s.mu.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
	}
	return nil
}

func (l *fakeLauncher) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

func (l *fakeLauncher) last() *fakeServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.servers[len(l.servers)-1]
}

// launchers hands out one shared fakeLauncher per factory call, keeping every
// launcher built so tests can inspect replacements.
type launchers struct {
	mu    sync.Mutex
	make  func() *fakeLauncher
	built []*fakeLauncher
}

func (ls *launchers) factory(Config) Launcher {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l := ls.make()
	ls.built = append(ls.built, l)
	return l
}

func (ls *launchers) current() *fakeLauncher {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.built[len(ls.built)-1]
}

func (ls *launchers) totalStarts() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	n := 0
	for _, l := range ls.built {
		n += l.Starts()
	}
	return n
}

// countingSender wraps a real client and counts exchanges.
type countingSender struct {
	inner *protocol.Client
	sends atomic.Int64
}

func (s *countingSender) Send(ctx context.Context, ep protocol.Endpoint, req protocol.Request) (protocol.Response, error) {
	resp, err := s.inner.Send(ctx, ep, req)
	s.sends.Add(1)
	return resp, err
}

func (s *countingSender) Probe(ctx context.Context, ep protocol.Endpoint) error {
	return s.inner.Probe(ctx, ep)
}

// harness wires a Manager to fakes on an unused loopback port.
type harness struct {
	t         *testing.T
	cfg       Config
	clock     *clock.Fake
	launchers *launchers
	sender    *countingSender
	manager   *Manager
}

func newHarness(t *testing.T, mutate func(*Config), launcher func() *fakeLauncher) *harness {
	t.Helper()
	port, err := protocoltest.UnusedPort()
	require.NoError(t, err)

	cfg := Config{
		Endpoint:           protocol.Endpoint{Address: "127.0.0.1", Port: port, Timeout: 500 * time.Millisecond},
		AutoStart:          true,
		Warmup:             5 * time.Second,
		ColdTimeout:        2 * time.Second,
		LockDir:            t.TempDir(),
		MaxStartsPerMinute: 6,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if launcher == nil {
		launcher = func() *fakeLauncher { return &fakeLauncher{t: t, listen: true} }
	}

	log := zaptest.NewLogger(t).Sugar()
	h := &harness{
		t:         t,
		cfg:       cfg,
		clock:     clock.NewFake(time.Now()),
		launchers: &launchers{make: launcher},
		sender:    &countingSender{inner: protocol.NewClient(log)},
	}
	h.manager = NewManager(cfg, log,
		WithClock(h.clock),
		WithSender(h.sender),
		WithLauncherFactory(h.launchers.factory))
	t.Cleanup(func() { h.manager.Close() })
	return h
}

type lintResult struct {
	result Result
	err    error
}

// lintAsync runs Lint on its own goroutine.
func (h *harness) lintAsync(path, content string) <-chan lintResult {
	out := make(chan lintResult, 1)
	go func() {
		r, err := h.manager.Lint(context.Background(), path, []byte(content))
		out <- lintResult{r, err}
	}()
	return out
}

// finishWarmup waits for the warm-up sleep and lets it elapse.
func (h *harness) finishWarmup() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntil(ctx, 1))
	h.clock.Advance(h.cfg.Warmup)
}

func await(t *testing.T, ch <-chan lintResult) lintResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("Lint did not return")
		return lintResult{err: errors.New("unreachable")}
	}
}
