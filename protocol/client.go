package protocol

import (
	"context"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lintd/errors"
	"github.com/teranos/lintd/logger"
)

// Dialer opens the TCP connection for one exchange.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client performs framed exchanges with a lint server. It holds no
// connection state and is safe for concurrent use.
type Client struct {
	dialer Dialer
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithNow replaces the time source used to compute deadlines.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Client. A nil logger falls back to the global logger.
func NewClient(log *zap.SugaredLogger, opts ...Option) *Client {
	if log == nil {
		log = logger.Logger
	}
	c := &Client{
		dialer: &net.Dialer{},
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs one request/response exchange on a fresh connection.
// A single deadline of ep.Timeout covers connecting, writing and reading.
func (c *Client) Send(ctx context.Context, ep Endpoint, req Request) (Response, error) {
	log := logger.FromContext(ctx, c.logger)

	payload, err := Encode(req)
	if err != nil {
		return Response{}, err
	}

	start := c.now()
	deadline := start.Add(ep.Timeout)
	addr := ep.HostPort()

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return Response{}, classify(err, "dial "+addr, ep)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, errors.MarkTransport(err, "set deadline")
	}

	if _, err := conn.Write(payload); err != nil {
		return Response{}, classify(err, "write request to "+addr, ep)
	}

	resp, err := ReadResponse(conn)
	if err != nil {
		if errors.IsProtocolError(err) {
			return Response{}, errors.Wrapf(err, "read response from %s", addr)
		}
		return Response{}, classify(err, "read response from "+addr, ep)
	}

	log.Debugw("Lint exchange complete",
		logger.FieldAddress, addr,
		logger.FieldPath, req.Path,
		logger.FieldSize, req.ContentLength(),
		logger.FieldBytes, len(resp.Raw),
		logger.FieldTimeout, ep.Timeout,
		logger.FieldDurationMS, c.now().Sub(start).Milliseconds())
	return resp, nil
}

func classify(err error, op string, ep Endpoint) error {
	wrapped := errors.MarkTransport(err, op)
	if isTimeout(err) {
		wrapped = errors.Mark(wrapped, errors.ErrTimeout)
		return errors.WithHintf(wrapped, "no complete response within %s", ep.Timeout)
	}
	return errors.WithHintf(wrapped, "is a lint server listening on %s?", ep.HostPort())
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Probe checks that something accepts connections at ep without sending a
// request.
func (c *Client) Probe(ctx context.Context, ep Endpoint) error {
	dialCtx, cancel := context.WithDeadline(ctx, c.now().Add(ep.Timeout))
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", ep.HostPort())
	if err != nil {
		return classify(err, "dial "+ep.HostPort(), ep)
	}
	return conn.Close()
}
