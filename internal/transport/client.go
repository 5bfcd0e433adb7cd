// Package transport owns the datagram socket to the network simulator.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mtzanidakis/swarmlink/internal/config"
)

var (
	// ErrTimeout is returned when no reply arrives within the receive window.
	ErrTimeout = errors.New("simulator reply timed out")
	// ErrTruncated is returned when a reply does not fit the receive buffer.
	ErrTruncated = errors.New("simulator reply truncated")
	// ErrBusy is returned when Exchange is called while another exchange is
	// outstanding. Callers gate exchanges themselves; this only reports misuse.
	ErrBusy = errors.New("exchange already in flight")
)

// drainWindow bounds how long a stale-reply drain waits for queued datagrams.
const drainWindow = 2 * time.Millisecond

// maxPending caps the number of unanswered requests whose replies are still
// expected. Replies lost on the wire would otherwise be waited for forever.
const maxPending = 2

// SocketError reports that the socket could not be created. The process
// cannot run without it.
type SocketError struct {
	Addr string
	Err  error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("open simulator socket %s: %v", e.Addr, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

type Client struct {
	conn        *net.UDPConn
	addr        string
	timeout     time.Duration
	maxDatagram int

	inflight sync.Mutex
	// pending counts timed-out requests whose replies have not been seen.
	// That many datagrams are discarded before a reply is accepted.
	pending int
}

// New opens the socket used for every exchange of the process lifetime.
func New(cfg config.SimulatorConfig) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &SocketError{Addr: addr, Err: err}
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, &SocketError{Addr: addr, Err: err}
	}

	maxDatagram := cfg.MaxDatagram
	if maxDatagram <= 0 {
		maxDatagram = 2048
	}
	timeout := cfg.RecvTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	slog.Info("simulator socket opened", "local", conn.LocalAddr().String(), "remote", addr)
	return &Client{
		conn:        conn,
		addr:        addr,
		timeout:     timeout,
		maxDatagram: maxDatagram,
	}, nil
}

func (c *Client) Addr() string { return c.addr }

// Exchange sends one request and waits for one reply, at most the configured
// receive timeout or until ctx is done. The returned slice is owned by the
// caller.
func (c *Client) Exchange(ctx context.Context, req []byte) ([]byte, error) {
	if !c.inflight.TryLock() {
		return nil, ErrBusy
	}
	defer c.inflight.Unlock()

	if c.pending > 0 {
		c.drain()
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	slog.Debug("request sent", "bytes", len(req), "addr", c.addr)

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	// One spare byte tells an exactly-full reply apart from a cut one.
	buf := make([]byte, c.maxDatagram+1)
	skipped := 0
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				c.expireRequest(skipped)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
			}
			return nil, fmt.Errorf("receive reply: %w", err)
		}
		if c.pending > 0 {
			c.pending--
			skipped++
			slog.Debug("discarded late reply", "bytes", n, "pending", c.pending)
			continue
		}
		if n > c.maxDatagram {
			return nil, fmt.Errorf("%w: reply exceeds %d bytes", ErrTruncated, c.maxDatagram)
		}
		slog.Debug("reply received", "bytes", n)
		return buf[:n], nil
	}
}

// expireRequest records that the current request went unanswered. When this
// exchange already discarded replies and then heard nothing, the count was
// too high (a reply was lost) and the discarded datagram may have been ours,
// so the request is not added.
func (c *Client) expireRequest(skipped int) {
	if skipped > 0 {
		return
	}
	c.pending = min(c.pending+1, maxPending)
}

// drain discards late replies already queued on the socket before a new
// request is sent.
func (c *Client) drain() {
	buf := make([]byte, c.maxDatagram+1)
	dropped := 0
	for c.pending > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
			break
		}
		if _, err := c.conn.Read(buf); err != nil {
			break
		}
		c.pending--
		dropped++
	}
	if dropped > 0 {
		slog.Debug("discarded late replies", "count", dropped, "pending", c.pending)
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
