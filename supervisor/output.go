package supervisor

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/lintd/logger"
)

// outputLogger forwards a child's output into the logger one line at a time.
type outputLogger struct {
	logger *zap.SugaredLogger
	stream string
	// pid is set after cmd.Start, when the copy goroutines already run
	pid atomic.Int64
	buf strings.Builder
}

func (l *outputLogger) Write(p []byte) (n int, err error) {
	l.buf.Write(p)
	for {
		line, rest, found := strings.Cut(l.buf.String(), "\n")
		if !found {
			break
		}
		l.buf.Reset()
		l.buf.WriteString(rest)
		l.emit(line)
	}
	return len(p), nil
}

// flush logs a trailing line that never got its newline.
func (l *outputLogger) flush() {
	line := l.buf.String()
	l.buf.Reset()
	l.emit(line)
}

func (l *outputLogger) emit(line string) {
	if line = strings.TrimSpace(line); line == "" {
		return
	}
	if l.stream == "stderr" {
		l.logger.Warnw("Lint server output", "stream", l.stream, logger.FieldPID, l.pid.Load(), "message", line)
	} else {
		l.logger.Infow("Lint server output", "stream", l.stream, logger.FieldPID, l.pid.Load(), "message", line)
	}
}
