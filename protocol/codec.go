package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/teranos/lintd/errors"
)

const readChunkSize = 4096

// Encode frames req for the wire. The path must be non-empty and the content
// must be valid UTF-8.
func Encode(req Request) ([]byte, error) {
	if req.Path == "" {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("empty path"),
			"use NormalizePath to name unsaved buffers")
	}
	if strings.ContainsRune(req.Path, '\n') {
		return nil, errors.NewInvalidRequestError("path %q contains a newline", req.Path)
	}
	if !utf8.Valid(req.Content) {
		return nil, errors.NewInvalidRequestError("content of %s is not valid UTF-8", req.Path)
	}

	length := strconv.Itoa(req.ContentLength())
	buf := make([]byte, 0, len(req.Path)+len(length)+2+len(req.Content))
	buf = append(buf, req.Path...)
	buf = append(buf, '\n')
	buf = append(buf, length...)
	buf = append(buf, '\n')
	buf = append(buf, req.Content...)
	return buf, nil
}

// DecodeRequest parses one framed request from r.
func DecodeRequest(r io.Reader) (Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	path, err := readHeaderLine(br, "path")
	if err != nil {
		return Request{}, err
	}
	lengthLine, err := readHeaderLine(br, "length")
	if err != nil {
		return Request{}, err
	}
	length, err := strconv.Atoi(lengthLine)
	if err != nil || length < 0 {
		return Request{}, errors.NewProtocolError("malformed content length %q", lengthLine)
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(br, content); err != nil {
		return Request{}, errors.Mark(
			errors.Wrapf(err, "read %d content bytes", length), errors.ErrProtocol)
	}
	return Request{Path: path, Content: content}, nil
}

func readHeaderLine(br *bufio.Reader, what string) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "read %s line", what), errors.ErrProtocol)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// IsTerminated reports whether raw is a complete response.
func IsTerminated(raw string) bool {
	return raw == "\n" || strings.HasSuffix(raw, "\n\n")
}

// ReadResponse reads from r until the accumulated text is terminated.
// EOF before the terminator is a protocol error; other read errors are
// returned unchanged for the caller to classify.
func ReadResponse(r io.Reader) (Response, error) {
	var raw strings.Builder
	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			raw.Write(buf[:n])
			if IsTerminated(raw.String()) {
				return Response{Raw: raw.String()}, nil
			}
		}
		if err == io.EOF {
			return Response{}, errors.NewProtocolError(
				"connection closed after %d bytes without a terminating blank line", raw.Len())
		}
		if err != nil {
			return Response{}, err
		}
	}
}

// WriteResponse writes lines followed by the blank terminator.
// No lines yields the single-newline response.
func WriteResponse(w io.Writer, lines []string) error {
	var out string
	if len(lines) == 0 {
		out = "\n"
	} else {
		out = strings.Join(lines, "\n") + "\n\n"
	}
	_, err := io.WriteString(w, out)
	return err
}
