package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

const probeTimeout = 2 * time.Second

// Client submits modification requests to a running listener and awaits the
// correlated response. The configured timeout bounds the full exchange (dial,
// write, response); it cancels only the client's wait, not the server-side work.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient creates a Client for the listener at host:port.
func NewClient(host string, port int, timeout time.Duration) *Client {
	return &Client{
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: timeout,
	}
}

// Send writes the envelope to the listener and blocks until the correlated
// response arrives or the timeout elapses. A zero CorrelationID is populated
// with a generated id before sending.
func (c *Client) Send(ctx context.Context, env Envelope) (*Response, error) {
	if env.CorrelationID == "" {
		env.CorrelationID = uuid.NewString()
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListenerUnavailable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(env); err != nil {
		return nil, classify(err, "write envelope")
	}

	// Half-close signals end of request to the listener's decoder.
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, classify(err, "read response")
	}

	if resp.CorrelationID != env.CorrelationID {
		return nil, fmt.Errorf(
			"correlation mismatch: sent %s, received %s",
			env.CorrelationID, resp.CorrelationID,
		)
	}

	return &resp, nil
}

// Available reports whether the listener endpoint accepts connections.
func (c *Client) Available() bool {
	conn, err := net.DialTimeout("tcp", c.addr, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func classify(err error, op string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
