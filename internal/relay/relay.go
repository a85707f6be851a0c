// Package relay forwards one OFS command over one fresh TCP connection and
// returns one newline-framed response.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	DefaultDialTimeout     = 5 * time.Second
	DefaultResponseTimeout = 60 * time.Second
	DefaultMaxResponse     = 64 << 20

	readChunk = 32 << 10
)

// ErrEmptyResponse is reported when the peer closes without sending anything.
var ErrEmptyResponse = errors.New("connection closed before any response")

// TransportError reports a connect, write or read failure against the
// remote service.
type TransportError struct {
	Op   string // "connect", "write" or "read"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline rather than a refusal
// or reset.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Option configures a Relay.
type Option func(*Relay)

func WithDialTimeout(d time.Duration) Option {
	return func(r *Relay) { r.dialTimeout = d }
}

// WithResponseTimeout bounds the whole exchange. Zero waits until the peer
// answers, closes, or the caller's context ends.
func WithResponseTimeout(d time.Duration) Option {
	return func(r *Relay) { r.responseTimeout = d }
}

func WithMaxResponse(n int64) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxResponse = n
		}
	}
}

// Relay is stateless; each Forward call owns its connection.
type Relay struct {
	addr            string
	dialTimeout     time.Duration
	responseTimeout time.Duration
	maxResponse     int64
}

func New(addr string, opts ...Option) *Relay {
	r := &Relay{
		addr:            addr,
		dialTimeout:     DefaultDialTimeout,
		responseTimeout: DefaultResponseTimeout,
		maxResponse:     DefaultMaxResponse,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Addr() string {
	return r.addr
}

// Frame compacts a JSON document to a single line ending in exactly one
// newline.
func Frame(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Forward writes doc as one line on a new connection and returns the first
// complete response line, terminator included. If the peer closes before a
// terminator arrives, whatever was received is the response. The connection
// is closed before Forward returns, and also as soon as ctx is done.
func (r *Relay) Forward(ctx context.Context, doc []byte) ([]byte, error) {
	line, err := Frame(doc)
	if err != nil {
		return nil, err
	}

	if r.responseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.responseTimeout)
		defer cancel()
	}

	d := net.Dialer{Timeout: r.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return nil, &TransportError{Op: "connect", Addr: r.addr, Err: err}
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(line); err != nil {
		return nil, r.fail(ctx, "write", err)
	}

	resp, err := ReadResponse(conn, r.maxResponse)
	if err != nil {
		return nil, r.fail(ctx, "read", err)
	}
	return resp, nil
}

func (r *Relay) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &TransportError{Op: op, Addr: r.addr, Err: err}
}

// ReadResponse reads from rd until the first newline and returns the bytes up
// to and including it. Bytes after the terminator are discarded. A clean EOF
// after at least one byte ends the response early.
func ReadResponse(rd io.Reader, max int64) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := rd.Read(chunk)
		if n > 0 {
			start := len(buf)
			buf = append(buf, chunk[:n]...)
			if i := bytes.IndexByte(buf[start:], '\n'); i >= 0 {
				return buf[:start+i+1], nil
			}
			if max > 0 && int64(len(buf)) > max {
				return nil, fmt.Errorf("response exceeds %d bytes without a terminator", max)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) > 0 {
					return buf, nil
				}
				return nil, ErrEmptyResponse
			}
			return nil, err
		}
	}
}
