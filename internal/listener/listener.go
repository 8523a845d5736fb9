// Package listener runs the background IPC service: a loopback TCP endpoint
// that accepts modification envelopes from local processes, queues them, and
// dispatches them to the modification system through a fixed worker pool.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/quill/internal/modifications"
	"github.com/JaimeStill/quill/pkg/ipc"
	"github.com/JaimeStill/quill/pkg/lifecycle"
)

// State is the listener lifecycle state.
type State string

const (
	StateStopped   State = "stopped"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateDraining  State = "draining"
)

// envelope decode must complete within this window or the connection is
// abandoned as malformed.
const readTimeout = 30 * time.Second

type job struct {
	env  ipc.Envelope
	conn net.Conn
}

// Listener owns the bound endpoint, the bounded FIFO queue, and the worker
// pool. Callers hold an explicit reference and are responsible for calling
// Drain on shutdown; there is no ambient instance.
type Listener struct {
	cfg    *Config
	system modifications.System
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	ln      net.Listener
	queue   chan job
	pending map[string]struct{}

	workers     errgroup.Group
	forceCancel chan struct{}
}

// New creates a stopped Listener.
func New(cfg *Config, system modifications.System, logger *slog.Logger) *Listener {
	return &Listener{
		cfg:    cfg,
		system: system,
		logger: logger.With("system", "listener"),
		state:  StateStopped,
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start binds the endpoint and launches the accept loop and worker pool.
// A bind failure is fatal and leaves the listener stopped; a second listener
// instance on the same port fails here fast. When a lifecycle coordinator is
// given, Drain is registered as a shutdown hook.
func (l *Listener) Start(lc *lifecycle.Coordinator) error {
	l.mu.Lock()
	if l.state != StateStopped {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotStopped, l.state)
	}
	l.state = StateStarting
	l.mu.Unlock()

	ln, err := net.Listen("tcp", l.cfg.Addr())
	if err != nil {
		l.mu.Lock()
		l.state = StateStopped
		l.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", ErrBind, l.cfg.Addr(), err)
	}

	l.mu.Lock()
	l.ln = ln
	l.queue = make(chan job, l.cfg.QueueCapacity)
	l.pending = make(map[string]struct{})
	l.forceCancel = make(chan struct{})
	l.state = StateListening
	l.mu.Unlock()

	for range l.cfg.Workers {
		l.workers.Go(func() error {
			l.work()
			return nil
		})
	}
	go l.accept()

	l.logger.Info("listener started",
		"addr", ln.Addr().String(),
		"queue_capacity", l.cfg.QueueCapacity,
		"workers", l.cfg.Workers,
	)

	if lc != nil {
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			l.Drain()
		})
	}
	return nil
}

// Addr returns the bound address, or empty when not listening.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Drain transitions to Draining: the endpoint closes, already-queued work
// runs to completion within the grace window, and whatever remains queued at
// the deadline is rejected with a shutting-down response. In-flight provider
// calls are never interrupted.
func (l *Listener) Drain() {
	l.mu.Lock()
	if l.state != StateListening {
		l.mu.Unlock()
		return
	}
	l.state = StateDraining
	ln := l.ln
	l.mu.Unlock()

	l.logger.Info("listener draining", "grace", l.cfg.DrainGrace)

	ln.Close()
	close(l.queue)

	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		close(done)
	}()

	grace := l.cfg.DrainGraceDuration()
	select {
	case <-done:
	case <-time.After(grace):
		// Deadline hit with work still queued. Workers stop processing and
		// flush the remainder as rejections.
		close(l.forceCancel)
		select {
		case <-done:
		case <-time.After(grace):
			l.logger.Error("drain deadline exceeded, abandoning in-flight work")
		}
	}

	l.mu.Lock()
	l.state = StateStopped
	l.mu.Unlock()
	l.logger.Info("listener stopped")
}

func (l *Listener) accept() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			// Endpoint closed; draining.
			return
		}
		go l.handleConn(conn)
	}
}

func (l *Listener) handleConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var env ipc.Envelope
	if err := json.NewDecoder(conn).Decode(&env); err != nil {
		l.logger.Warn("invalid envelope", "error", err)
		l.respond(conn, ipc.Response{
			Success:   false,
			Timestamp: time.Now().UTC(),
			ErrorCode: ipc.CodeInvalidEnvelope,
			Message:   fmt.Sprintf("decode envelope: %v", err),
		})
		return
	}
	if env.CorrelationID == "" {
		env.CorrelationID = uuid.NewString()
	}

	l.submit(job{env: env, conn: conn})
}

// submit enqueues under the state lock so a Draining transition and a
// concurrent enqueue cannot interleave. The queue send never blocks; a full
// queue is the backpressure signal, reported immediately.
func (l *Listener) submit(j job) {
	l.mu.Lock()
	if l.state != StateListening {
		l.mu.Unlock()
		l.reject(j, ipc.CodeShuttingDown, "listener is shutting down", true)
		return
	}
	if _, inFlight := l.pending[j.env.CorrelationID]; inFlight {
		l.mu.Unlock()
		l.reject(j, ipc.CodeValidationError,
			fmt.Sprintf("correlation id %s already in flight", j.env.CorrelationID), false)
		return
	}

	select {
	case l.queue <- j:
		l.pending[j.env.CorrelationID] = struct{}{}
		l.mu.Unlock()
	default:
		l.mu.Unlock()
		l.reject(j, ipc.CodeQueueFull, "processing queue is full", true)
	}
}

func (l *Listener) work() {
	for j := range l.queue {
		select {
		case <-l.forceCancel:
			l.removePending(j.env.CorrelationID)
			l.reject(j, ipc.CodeShuttingDown, "listener shut down before processing", true)
		default:
			l.process(j)
		}
	}
}

func (l *Listener) process(j job) {
	logger := l.logger.With(
		"correlation_id", j.env.CorrelationID,
		"operation", j.env.Operation,
		"source", j.env.SourceApplication,
	)
	logger.Info("processing envelope")

	correlationID, err := uuid.Parse(j.env.CorrelationID)
	if err != nil {
		correlationID = uuid.New()
	}

	req := modifications.Request{
		Text:          j.env.Text,
		Operation:     modifications.Operation(j.env.Operation),
		UserID:        j.env.UserID,
		Options:       j.env.Options,
		CorrelationID: correlationID,
	}

	// Deliberately not tied to the client connection: a client that times
	// out and disconnects does not cancel work already dispatched.
	start := time.Now()
	result, err := l.system.Process(context.Background(), req)

	l.removePending(j.env.CorrelationID)

	if err != nil {
		logger.Error("envelope processing failed", "error", err)
		l.respond(j.conn, ipc.Response{
			CorrelationID:    j.env.CorrelationID,
			Success:          false,
			Operation:        j.env.Operation,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Timestamp:        time.Now().UTC(),
			ErrorCode:        modifications.Code(err),
			Message:          err.Error(),
			IsRetryable:      modifications.IsRetryable(err),
		})
		return
	}

	logger.Info("envelope processed", "processing_ms", result.ProcessingTimeMs)
	l.respond(j.conn, ipc.Response{
		CorrelationID:    j.env.CorrelationID,
		Success:          true,
		ModifiedText:     result.ModifiedText,
		Operation:        string(result.Operation),
		ModelUsed:        result.ModelUsed,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Timestamp:        result.Timestamp,
	})
}

func (l *Listener) reject(j job, code, message string, retryable bool) {
	l.respond(j.conn, ipc.Response{
		CorrelationID: j.env.CorrelationID,
		Success:       false,
		Operation:     j.env.Operation,
		Timestamp:     time.Now().UTC(),
		ErrorCode:     code,
		Message:       message,
		IsRetryable:   retryable,
	})
}

func (l *Listener) removePending(correlationID string) {
	l.mu.Lock()
	delete(l.pending, correlationID)
	l.mu.Unlock()
}

func (l *Listener) respond(conn net.Conn, resp ipc.Response) {
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(readTimeout))
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		// Client likely timed out and disconnected; the result is discarded.
		l.logger.Warn("failed to deliver response",
			"correlation_id", resp.CorrelationID,
			"error", err,
		)
	}
}
