package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/lintd/am"
	"github.com/teranos/lintd/daemon"
	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
	"github.com/teranos/lintd/protocol"
)

// ProxyCmd serves framed lint requests on stdin for a long-lived editor process
var ProxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve framed lint requests on stdin/stdout for an editor",
	Long: `Read lint requests from stdin in the lint server's own framing and
write each response to stdout, starting and supervising the server as
needed. An editor runs one proxy for its whole session, so the server
stays warm between requests and stops when the editor exits.

Request framing (one per buffer):
  <path>\n<byte length>\n<content>

Every request gets one response terminated by an empty line. Degraded
outcomes are answered with a single "lintd: <message>" line, which does
not match the diagnostic format. The proxy exits 1 after answering when a
server it started has exited with a non-zero status.

The configuration file is watched; edits take effect on the next request.`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

// linter is the part of daemon.Manager the proxy uses
type linter interface {
	Lint(ctx context.Context, path string, content []byte) (daemon.Result, error)
}

func runProxy(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.ComponentLogger("proxy")
	m, err := newManager()
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("Failed to stop lint server", logger.FieldError, err)
		}
	}()

	if watcher := watchConfig(m, log); watcher != nil {
		defer watcher.Stop()
	}

	return serveFramed(ctx, m, cmd.InOrStdin(), cmd.OutOrStdout(), log)
}

// watchConfig reconfigures m whenever the active config file changes
func watchConfig(m *daemon.Manager, log *zap.SugaredLogger) *am.ConfigWatcher {
	path := activeConfigPath()
	if path == "" {
		return nil
	}
	watcher, err := am.NewConfigWatcher(path, reloadConfig, log.Named("config"))
	if err != nil {
		log.Debugw("Config file not watched", logger.FieldFile, path, logger.FieldError, err)
		return nil
	}
	watcher.OnReload(func(cfg *am.Config) error {
		dcfg, err := managerConfig(cfg)
		if err != nil {
			return err
		}
		return m.Reconfigure(dcfg)
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()
	return watcher
}

type framedRequest struct {
	req protocol.Request
	err error
}

// serveFramed answers requests from in until EOF, ctx is cancelled, or
// a fatal error. Reads run on their own goroutine so a signal is not
// held up by a blocked stdin.
func serveFramed(ctx context.Context, l linter, in io.Reader, out io.Writer, log *zap.SugaredLogger) error {
	requests := make(chan framedRequest)
	go func() {
		defer close(requests)
		br := bufio.NewReader(in)
		for {
			req, err := protocol.DecodeRequest(br)
			select {
			case requests <- framedRequest{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var next framedRequest
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case next, ok = <-requests:
		}
		if !ok {
			return nil
		}
		if next.err != nil {
			if errors.Is(next.err, io.EOF) {
				return nil
			}
			return errors.Wrap(next.err, "read request")
		}

		result, err := l.Lint(ctx, next.req.Path, next.req.Content)
		switch {
		case err != nil && errors.IsInvalidRequestError(err):
			log.Warnw("Rejected request", logger.FieldPath, next.req.Path, logger.FieldError, err)
			if werr := writeNotice(out, err.Error()); werr != nil {
				return werr
			}
		case err != nil:
			if werr := writeNotice(out, err.Error()); werr != nil {
				log.Warnw("Failed to write response", logger.FieldError, werr)
			}
			return err
		case result.OK():
			if _, err := io.WriteString(out, result.Text); err != nil {
				return errors.Wrap(err, "write response")
			}
		default:
			if err := writeNotice(out, result.Text); err != nil {
				return err
			}
		}
	}
}

// writeNotice answers with one line that editors will not parse as a diagnostic
func writeNotice(out io.Writer, message string) error {
	if err := protocol.WriteResponse(out, []string{"lintd: " + message}); err != nil {
		return errors.Wrap(err, "write response")
	}
	return nil
}
