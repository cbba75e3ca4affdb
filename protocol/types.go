package protocol

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// UnsavedName is the path sent for buffers that have never been saved.
const UnsavedName = "untitled"

// Defaults match the stock lint server launcher.
const (
	DefaultAddress = "localhost"
	DefaultPort    = 2222
	DefaultTimeout = 2 * time.Second
)

// Endpoint is where a lint server listens and how long one exchange may take.
type Endpoint struct {
	Address string
	Port    int
	Timeout time.Duration
}

// DefaultEndpoint returns localhost:2222 with a two second timeout.
func DefaultEndpoint() Endpoint {
	return Endpoint{Address: DefaultAddress, Port: DefaultPort, Timeout: DefaultTimeout}
}

// HostPort returns the dialable "address:port" form.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// WithTimeout returns a copy of e using timeout d.
func (e Endpoint) WithTimeout(d time.Duration) Endpoint {
	e.Timeout = d
	return e
}

func (e Endpoint) String() string {
	return e.HostPort()
}

// Request is one lint request. Its content length is always derived from Content.
type Request struct {
	Path    string
	Content []byte
}

// NewRequest builds a request, mapping an empty path to UnsavedName.
func NewRequest(path string, content []byte) Request {
	return Request{Path: NormalizePath(path), Content: content}
}

// ContentLength is the UTF-8 byte length of the content.
func (r Request) ContentLength() int {
	return len(r.Content)
}

// Response is the raw text returned by the server, terminator included.
type Response struct {
	Raw string
}

// Lines returns the diagnostic lines without the blank terminator.
func (r Response) Lines() []string {
	trimmed := strings.TrimRight(r.Raw, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// Empty reports whether the server found nothing to report.
func (r Response) Empty() bool {
	return len(r.Lines()) == 0
}

// NormalizePath maps the empty path of an unsaved buffer to UnsavedName.
func NormalizePath(path string) string {
	if path == "" {
		return UnsavedName
	}
	return path
}
