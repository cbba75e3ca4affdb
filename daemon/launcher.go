package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/lintd/internal/clock"
	"github.com/teranos/lintd/protocol"
	"github.com/teranos/lintd/supervisor"
)

// Server is a lint server process owned by a Manager.
type Server interface {
	PID() int
	Alive() bool
	ExitStatus() (code int, exited bool)
	FailedOnItsOwn() bool
}

// Launcher starts and stops the owned server.
type Launcher interface {
	Start(ctx context.Context, port int) (Server, error)
	Stop() error
}

// LauncherFactory builds a fresh Launcher for a configuration.
type LauncherFactory func(cfg Config) Launcher

// Sender performs one lint exchange. *protocol.Client implements it.
type Sender interface {
	Send(ctx context.Context, ep protocol.Endpoint, req protocol.Request) (protocol.Response, error)
	Probe(ctx context.Context, ep protocol.Endpoint) error
}

// SupervisorLauncher launches servers through a supervisor.Supervisor.
func SupervisorLauncher(log *zap.SugaredLogger, c clock.Clock) LauncherFactory {
	return func(cfg Config) Launcher {
		return &supervisedLauncher{
			sup: supervisor.New(cfg.Supervisor, log, supervisor.WithClock(c)),
		}
	}
}

type supervisedLauncher struct {
	sup *supervisor.Supervisor
}

func (l *supervisedLauncher) Start(ctx context.Context, port int) (Server, error) {
	proc, err := l.sup.Start(ctx, port)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func (l *supervisedLauncher) Stop() error {
	return l.sup.Stop()
}
