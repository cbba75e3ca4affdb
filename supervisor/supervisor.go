package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/internal/clock"
	"github.com/teranos/lintd/logger"
)

// ErrSupervisorStopped is returned by Start once the supervisor has stopped.
var ErrSupervisorStopped = errors.New("supervisor stopped")

// DefaultPollInterval is how often Watch checks the parent pid.
const DefaultPollInterval = 100 * time.Millisecond

// OutputWaitDelay bounds how long output is drained after the child exits.
const OutputWaitDelay = time.Second

// DefaultStopGrace is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopGrace = 2 * time.Second

// Config describes how to launch the lint server.
type Config struct {
	// Argv is the command to run; PortPlaceholder is replaced in every argument
	Argv []string
	// Env is added to the inherited environment
	Env map[string]string
	// PathDir is prepended to the child's PATH when set
	PathDir string
	// Dir is the child's working directory
	Dir string
	// PollInterval is the orphan check period
	PollInterval time.Duration
	// StopGrace bounds the wait between SIGTERM and SIGKILL in Stop
	StopGrace time.Duration
}

// Supervisor owns at most one lint server process.
type Supervisor struct {
	cfg       Config
	logger    *zap.SugaredLogger
	clock     clock.Clock
	inspector Inspector

	mu     sync.Mutex
	state  State
	reason StopReason
	proc   *Process
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the wall clock used for polling.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithInspector replaces the gopsutil process inspector.
func WithInspector(i Inspector) Option {
	return func(s *Supervisor) { s.inspector = i }
}

// New creates a Supervisor. A nil logger falls back to the global logger.
func New(cfg Config, log *zap.SugaredLogger, opts ...Option) *Supervisor {
	if log == nil {
		log = logger.ComponentLogger("supervisor")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	s := &Supervisor{
		cfg:       cfg,
		logger:    log,
		clock:     clock.Real{},
		inspector: HostInspector{},
		state:     StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the server on port, or returns the held process if it is
// still alive.
func (s *Supervisor) Start(ctx context.Context, port int) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil, ErrSupervisorStopped
	}
	if s.proc != nil && s.proc.Alive() {
		return s.proc, nil
	}
	if len(s.cfg.Argv) == 0 {
		return nil, errors.NewConfigurationError("no lint server command configured")
	}

	parent, err := s.inspector.ParentPID(ctx)
	if err != nil {
		return nil, errors.MarkProcess(err, "capture parent pid")
	}

	argv := ExpandPort(s.cfg.Argv, port)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = s.environ()

	stdout := &outputLogger{logger: s.logger, stream: "stdout"}
	stderr := &outputLogger{logger: s.logger, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// A grandchild holding our pipes must not keep Wait, and so Kill, blocked
	cmd.WaitDelay = OutputWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, errors.WithHint(
			errors.MarkProcess(err, "start lint server: "+QuoteCommand(argv)),
			"check engine.command and engine.interpreter in the lintd configuration")
	}
	stdout.pid.Store(int64(cmd.Process.Pid))
	stderr.pid.Store(int64(cmd.Process.Pid))

	proc := newProcess(cmd, port, s.clock.Now(), parent)
	go proc.wait(func() {
		stdout.flush()
		stderr.flush()
		code := proc.cmd.ProcessState.ExitCode()
		if code != 0 && !proc.StoppedByOwner() {
			s.logger.Warnw("Lint server exited", logger.FieldPID, proc.PID(), logger.FieldExitCode, code)
		} else {
			s.logger.Infow("Lint server exited", logger.FieldPID, proc.PID(), logger.FieldExitCode, code)
		}
	})

	s.proc = proc
	s.setStateLocked(StateRunning)
	s.logger.Infow("Lint server started",
		logger.FieldPID, proc.PID(),
		logger.FieldPort, port,
		logger.FieldParentPID, parent,
		logger.FieldCommand, QuoteCommand(argv))
	return proc, nil
}

// IsRunning reports whether a held child is alive. It never blocks on the child.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.Alive()
}

// Process returns the held child, which may have exited, or nil.
func (s *Supervisor) Process() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the supervisor stopped, or ReasonNone.
func (s *Supervisor) Reason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Stop terminates the held child if any. Without a child it is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	proc := s.proc
	if proc == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := proc.Terminate(s.cfg.StopGrace)
	s.finish(ReasonStopped)
	return err
}

// Watch polls the parent pid until the supervisor is orphaned, the child
// exits, or ctx is cancelled. The child is killed in every case but its own
// exit, and the supervisor ends Stopped.
func (s *Supervisor) Watch(ctx context.Context) (StopReason, error) {
	proc := s.Process()
	if proc == nil {
		return ReasonNone, errors.MarkProcess(errors.New("no process"), "watch")
	}

	for {
		select {
		case <-proc.Done():
			s.enter(ReasonChildExited)
			s.finish(ReasonChildExited)
			return ReasonChildExited, nil

		case <-ctx.Done():
			s.enter(ReasonSignalled)
			err := proc.Kill()
			s.finish(ReasonSignalled)
			return ReasonSignalled, err

		case <-s.clock.After(s.cfg.PollInterval):
			parent, err := s.inspector.ParentPID(ctx)
			if err != nil {
				s.logger.Debugw("Parent pid check failed", logger.FieldError, err)
				continue
			}
			if parent != proc.OwnerParentPID {
				s.logger.Infow("Owner went away, stopping lint server",
					logger.FieldParentPID, proc.OwnerParentPID,
					"current_parent_pid", parent,
					logger.FieldPID, proc.PID())
				s.enter(ReasonOrphaned)
				err := proc.Kill()
				s.finish(ReasonOrphaned)
				return ReasonOrphaned, err
			}
		}
	}
}

// enter moves a running supervisor into the state that reason ends in.
func (s *Supervisor) enter(reason StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	s.setStateLocked(reason.state())
}

// finish records reason and moves to the terminal state.
func (s *Supervisor) finish(reason StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	s.reason = reason
	s.setStateLocked(StateStopped)
}

func (s *Supervisor) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.Debugw("Supervisor state changed",
		"from", s.state.String(),
		"to", state.String(),
		logger.FieldReason, s.reason.String())
	s.state = state
}

func (s *Supervisor) environ() []string {
	env := os.Environ()
	if s.cfg.PathDir != "" {
		env = append(env, "PATH="+s.cfg.PathDir+string(filepath.ListSeparator)+os.Getenv("PATH"))
	}
	keys := make([]string, 0, len(s.cfg.Env))
	for k := range s.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.cfg.Env[k])
	}
	return env
}
