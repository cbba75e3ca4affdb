package daemon

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/internal/clock"
	"github.com/teranos/lintd/logger"
	"github.com/teranos/lintd/protocol"
)

// Manager hides connection failures, lazy start and warm-up behind Lint.
// It is safe for concurrent use; each Lint opens its own connection.
type Manager struct {
	logger      *zap.SugaredLogger
	clock       clock.Clock
	client      Sender
	newLauncher LauncherFactory
	flight      singleflight.Group

	mu       sync.Mutex
	cfg      Config
	launcher Launcher
	server   Server
	limiter  *rate.Limiter
	phase    Phase
	starting bool
	// starts counts completed start flights
	starts uint64
	fatal  error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for warm-up delays.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSender replaces the protocol client.
func WithSender(s Sender) Option {
	return func(m *Manager) { m.client = s }
}

// WithLauncherFactory replaces how servers are launched.
func WithLauncherFactory(f LauncherFactory) Option {
	return func(m *Manager) { m.newLauncher = f }
}

// NewManager creates a Manager for cfg. A nil logger falls back to the global logger.
func NewManager(cfg Config, log *zap.SugaredLogger, opts ...Option) *Manager {
	if log == nil {
		log = logger.ComponentLogger("daemon")
	}
	m := &Manager{
		logger: log,
		clock:  clock.Real{},
		cfg:    cfg,
		phase:  PhaseCold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = protocol.NewClient(log.Named("protocol"))
	}
	if m.newLauncher == nil {
		m.newLauncher = SupervisorLauncher(log.Named("supervisor"), m.clock)
	}
	m.launcher = m.newLauncher(cfg)
	m.limiter = newLimiter(cfg.MaxStartsPerMinute)
	return m
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Lint sends content for path to the lint server. An empty path names an
// unsaved buffer. Every server failure is folded into Result; the only
// errors are errors.ErrServerExited and invalid input.
func (m *Manager) Lint(ctx context.Context, path string, content []byte) (Result, error) {
	requestID := uuid.NewString()
	ctx = logger.WithRequestID(ctx, requestID)
	log := logger.FromContext(ctx, m.logger)
	start := m.clock.Now()

	m.mu.Lock()
	cfg := m.cfg
	seenStarts := m.starts
	fatal := m.checkFatalLocked()
	m.mu.Unlock()
	if fatal != nil {
		return Result{RequestID: requestID}, fatal
	}

	if path == "" {
		path = cfg.unsavedName()
	}
	req := protocol.NewRequest(path, content)

	resp, err := m.client.Send(ctx, cfg.Endpoint, req)
	if err == nil {
		m.markWarm()
		log.Debugw("Lint succeeded",
			logger.FieldPath, path,
			logger.FieldOutcome, OutcomeSuccess.String(),
			logger.FieldDurationMS, m.clock.Now().Sub(start).Milliseconds())
		return Result{Outcome: OutcomeSuccess, Text: resp.Raw, RequestID: requestID}, nil
	}
	if errors.IsInvalidRequestError(err) {
		return Result{RequestID: requestID}, err
	}

	result, err := m.recover(ctx, cfg, req, err, seenStarts)
	result.RequestID = requestID
	if err == nil && !result.OK() {
		log.Warnw("Lint degraded",
			logger.FieldPath, path,
			logger.FieldOutcome, result.Outcome.String(),
			logger.FieldError, result.Cause,
			logger.FieldDurationMS, m.clock.Now().Sub(start).Milliseconds())
	}
	return result, err
}

// recover handles a failed first exchange. seenStarts is the start count
// read before that exchange; a start finished since then is retried
// instead of being reported as still warming up.
func (m *Manager) recover(ctx context.Context, cfg Config, req protocol.Request, sendErr error, seenStarts uint64) (Result, error) {
	log := logger.FromContext(ctx, m.logger)

	if !cfg.AutoStart {
		return failed(OutcomeServerUnavailable, "", errors.WithHint(
			errors.Mark(sendErr, errors.ErrConfiguration),
			"start the server with `lintd supervise` or enable daemon.auto_start")), nil
	}

	m.mu.Lock()
	if fatal := m.checkFatalLocked(); fatal != nil {
		m.mu.Unlock()
		return Result{}, fatal
	}
	startedSince := m.starts != seenStarts
	warming := m.server != nil && m.server.Alive() && !m.starting && !startedSince
	m.mu.Unlock()
	if warming {
		return failed(OutcomeStillWarmingUp, "", sendErr), nil
	}

	if startedSince {
		log.Debugw("Lint server started during this call, retrying",
			logger.FieldAddress, cfg.Endpoint.HostPort())
	} else {
		log.Infow("Lint server unreachable, starting it",
			logger.FieldAddress, cfg.Endpoint.HostPort(),
			logger.FieldError, sendErr)

		key := strconv.Itoa(cfg.Endpoint.Port)
		_, startErr, shared := m.flight.Do(key, func() (interface{}, error) {
			return nil, m.ensureStarted(ctx, cfg)
		})
		if shared {
			log.Debugw("Joined in-flight start", logger.FieldPort, cfg.Endpoint.Port)
		}
		if startErr != nil {
			if errors.Is(startErr, errors.ErrServerExited) {
				return Result{}, startErr
			}
			return failed(OutcomeStartupFailed, "", startErr), nil
		}
	}

	resp, err := m.client.Send(ctx, cfg.Endpoint.WithTimeout(cfg.ColdTimeout), req)
	if err != nil {
		m.mu.Lock()
		fatal := m.checkFatalLocked()
		m.mu.Unlock()
		if fatal != nil {
			return Result{}, fatal
		}
		return failed(OutcomeStartupFailed, "", err), nil
	}

	m.markWarm()
	return Result{Outcome: OutcomeSuccess, Text: resp.Raw}, nil
}

// ensureStarted makes sure a server is running on cfg's port, starting one
// and waiting out its warm-up if needed. Runs once per flight; a success is
// counted in the same critical section that clears starting.
func (m *Manager) ensureStarted(ctx context.Context, cfg Config) (err error) {
	log := logger.FromContext(ctx, m.logger)

	m.mu.Lock()
	m.starting = true
	m.setPhaseLocked(PhaseStarting)
	launcher := m.launcher
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.starting = false
		if err == nil {
			m.starts++
		}
		if m.phase == PhaseStarting {
			m.setPhaseLocked(PhaseCold)
		}
		m.mu.Unlock()
	}()

	lock, err := acquireStartLock(ctx, cfg.lockDir(), cfg.Endpoint.Port, cfg.Warmup+cfg.ColdTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warnw("Failed to release start lock", logger.FieldFile, lock.Path(), logger.FieldError, err)
		}
	}()

	m.mu.Lock()
	alive := m.server != nil && m.server.Alive()
	m.mu.Unlock()
	if alive {
		return nil
	}

	// Another lintd on this host may have started it while we waited for the lock
	if err := m.client.Probe(ctx, cfg.Endpoint); err == nil {
		log.Infow("Lint server came up elsewhere", logger.FieldAddress, cfg.Endpoint.HostPort())
		return nil
	}

	if !m.limiter.AllowN(m.clock.Now(), 1) {
		return errors.WithHint(
			errors.MarkProcess(errors.New("restart limit reached"), "start lint server"),
			"the server keeps exiting; check its output in the lintd log")
	}

	server, err := launcher.Start(ctx, cfg.Endpoint.Port)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	log.Infow("Lint server launched, warming up",
		logger.FieldPID, server.PID(),
		logger.FieldPort, cfg.Endpoint.Port,
		logger.FieldWarmup, cfg.Warmup)

	if err := clock.Sleep(ctx, m.clock, cfg.Warmup); err != nil {
		return errors.Wrap(err, "warm-up interrupted")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkFatalLocked()
}

// checkFatalLocked latches ErrServerExited once an owned server has exited
// non-zero on its own. m.mu must be held.
func (m *Manager) checkFatalLocked() error {
	if m.fatal != nil {
		return m.fatal
	}
	if m.server == nil || !m.server.FailedOnItsOwn() {
		return nil
	}

	code, _ := m.server.ExitStatus()
	m.fatal = errors.WithHint(
		errors.Wrapf(errors.ErrServerExited, "lint server pid %d exited with status %d", m.server.PID(), code),
		"fix the engine setup, then reconfigure or reset lintd")
	m.setPhaseLocked(PhaseCold)
	m.logger.Errorw("Lint server exited",
		logger.FieldPID, m.server.PID(),
		logger.FieldExitCode, code)
	return m.fatal
}

// setPhaseLocked records a phase transition. m.mu must be held.
func (m *Manager) setPhaseLocked(p Phase) {
	if m.phase == p {
		return
	}
	m.logger.Debugw("Lint server phase changed",
		"from", m.phase.String(),
		logger.FieldPhase, p.String())
	m.phase = p
}

func (m *Manager) markWarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.starting {
		m.setPhaseLocked(PhaseWarm)
	}
}

// Reconfigure applies new settings. The owned server is stopped and the
// launcher rebuilt only when the endpoint or launch settings changed.
// The fatal latch is cleared either way.
func (m *Manager) Reconfigure(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := !m.cfg.sameServer(cfg)
	if cfg.MaxStartsPerMinute != m.cfg.MaxStartsPerMinute {
		m.limiter = newLimiter(cfg.MaxStartsPerMinute)
	}
	m.cfg = cfg
	m.fatal = nil

	if !changed {
		m.logger.Infow("Configuration reloaded, server unchanged", logger.FieldAddress, cfg.Endpoint.HostPort())
		return nil
	}

	m.logger.Infow("Configuration changed, replacing server", logger.FieldAddress, cfg.Endpoint.HostPort())
	return m.replaceLauncherLocked()
}

// Reset stops the owned server and clears the fatal latch.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatal = nil
	m.limiter = newLimiter(m.cfg.MaxStartsPerMinute)
	return m.replaceLauncherLocked()
}

func (m *Manager) replaceLauncherLocked() error {
	err := m.launcher.Stop()
	m.launcher = m.newLauncher(m.cfg)
	m.server = nil
	m.setPhaseLocked(PhaseCold)
	if err != nil {
		return errors.MarkProcess(err, "stop lint server")
	}
	return nil
}

// Close stops the owned server, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	launcher := m.launcher
	m.mu.Unlock()
	return launcher.Stop()
}

// Status is a snapshot of the Manager's state.
type Status struct {
	Phase     Phase
	Endpoint  protocol.Endpoint
	AutoStart bool
	ServerPID int
	Owned     bool
	Alive     bool
	Fatal     error
}

// Status returns a snapshot of the Manager's state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Phase:     m.phase,
		Endpoint:  m.cfg.Endpoint,
		AutoStart: m.cfg.AutoStart,
		Fatal:     m.checkFatalLocked(),
	}
	if m.server != nil {
		st.Owned = true
		st.ServerPID = m.server.PID()
		st.Alive = m.server.Alive()
	}
	return st
}
