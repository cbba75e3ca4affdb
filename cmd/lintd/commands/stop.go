package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/lintd/supervisor"
)

// StopCmd stops whatever lint server listens on the configured port
var StopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the lint server listening on the configured port",
	Long: `Find the process listening on the configured port and terminate it.
Use this for servers that were started outside a supervising lintd.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

// stopWait bounds how long stop waits for the server to go away
const stopWait = 5 * time.Second

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ep := cfg.Endpoint()

	inspector := supervisor.HostInspector{}
	pid, err := inspector.ListenerPID(ctx, ep.Port)
	if err != nil {
		return err
	}
	if pid == 0 {
		pterm.Info.Printf("No lint server listening on %s\n", ep)
		return nil
	}
	if err := supervisor.TerminatePID(ctx, pid); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, stopWait)
	defer cancel()
	if err := inspector.WaitForExit(waitCtx, pid, 50*time.Millisecond); err != nil {
		pterm.Warning.Printf("Lint server (pid %d) was signalled but has not exited yet\n", pid)
		return nil
	}
	pterm.Success.Printf("Stopped lint server (pid %d) on %s\n", pid, ep)
	return nil
}
