package listener_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/quill/internal/listener"
	"github.com/JaimeStill/quill/internal/modifications"
	"github.com/JaimeStill/quill/pkg/ipc"
	"github.com/JaimeStill/quill/pkg/pagination"
)

// blockingSystem processes requests only after the gate opens, so tests can
// hold workers busy deterministically.
type blockingSystem struct {
	gate    chan struct{}
	entered chan struct{}
	err     error

	mu    sync.Mutex
	calls int
}

func newBlockingSystem() *blockingSystem {
	return &blockingSystem{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 64),
	}
}

func (s *blockingSystem) Process(_ context.Context, req modifications.Request) (*modifications.Result, error) {
	s.entered <- struct{}{}
	<-s.gate

	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return &modifications.Result{
		OriginalText:  req.Text,
		ModifiedText:  "modified: " + req.Text,
		Operation:     req.Operation,
		CorrelationID: req.CorrelationID.String(),
		Timestamp:     time.Now().UTC(),
		ModelUsed:     "test-model",
	}, nil
}

func (s *blockingSystem) Analyze(context.Context, string, string) (*modifications.Analysis, error) {
	return nil, errors.New("not implemented")
}

func (s *blockingSystem) History(
	context.Context, string, pagination.PageRequest, string,
) (*pagination.PageResult[modifications.RecordSummary], error) {
	return nil, errors.New("not implemented")
}

func (s *blockingSystem) Statistics(context.Context, string) (*modifications.Statistics, error) {
	return nil, errors.New("not implemented")
}

func (s *blockingSystem) Handler() *modifications.Handler { return nil }

func (s *blockingSystem) open() {
	close(s.gate)
}

func testConfig(queue, workers int) *listener.Config {
	return &listener.Config{
		Host:          "127.0.0.1",
		Port:          0, // ephemeral
		QueueCapacity: queue,
		Workers:       workers,
		DrainGrace:    "5s",
	}
}

func startListener(t *testing.T, cfg *listener.Config, sys modifications.System) (*listener.Listener, *ipc.Client) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := listener.New(cfg, sys, logger)
	if err := l.Start(nil); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	t.Cleanup(l.Drain)

	host, portStr, err := net.SplitHostPort(l.Addr())
	if err != nil {
		t.Fatalf("split addr %q: %v", l.Addr(), err)
	}
	port, _ := strconv.Atoi(portStr)

	return l, ipc.NewClient(host, port, 10*time.Second)
}

func TestRoundTrip(t *testing.T) {
	sys := newBlockingSystem()
	sys.open()
	l, client := startListener(t, testConfig(8, 2), sys)

	if l.State() != listener.StateListening {
		t.Fatalf("state: got %s, want listening", l.State())
	}

	resp, err := client.Send(context.Background(), ipc.Envelope{
		Text:              "hello",
		Operation:         "improve",
		SourceApplication: "test-harness",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !resp.Success {
		t.Fatalf("expected success, got %s: %s", resp.ErrorCode, resp.Message)
	}
	if resp.ModifiedText != "modified: hello" {
		t.Errorf("modified text: got %q", resp.ModifiedText)
	}
	if resp.CorrelationID == "" {
		t.Error("expected a correlation id")
	}
}

func TestDomainErrorsMapToResponseCodes(t *testing.T) {
	sys := newBlockingSystem()
	sys.err = fmt.Errorf("%w: status 503", modifications.ErrProviderUnavailable)
	sys.open()
	_, client := startListener(t, testConfig(8, 2), sys)

	resp, err := client.Send(context.Background(), ipc.Envelope{
		Text:      "hello",
		Operation: "improve",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if resp.Success {
		t.Fatal("expected failure response")
	}
	if resp.ErrorCode != ipc.CodeProviderUnavailable {
		t.Errorf("error_code: got %q", resp.ErrorCode)
	}
	if !resp.IsRetryable {
		t.Error("provider_unavailable should be retryable")
	}
}

func TestInvalidEnvelopeRejected(t *testing.T) {
	sys := newBlockingSystem()
	sys.open()
	l, _ := startListener(t, testConfig(8, 1), sys)

	conn, err := net.Dial("tcp", l.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("this is not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if want := ipc.CodeInvalidEnvelope; !strings.Contains(string(raw), want) {
		t.Errorf("response missing %q: %s", want, raw)
	}
}

func TestQueueFullBackpressure(t *testing.T) {
	const capacity = 2
	sys := newBlockingSystem()
	_, client := startListener(t, testConfig(capacity, 1), sys)

	responses := make(chan *ipc.Response, capacity+2)
	send := func(text string) {
		resp, err := client.Send(context.Background(), ipc.Envelope{
			Text:      text,
			Operation: "summarize",
		})
		if err != nil {
			t.Errorf("send %s: %v", text, err)
			return
		}
		responses <- resp
	}

	// Occupy the single worker.
	go send("busy")
	select {
	case <-sys.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up first envelope")
	}

	// Fill the queue behind the blocked worker.
	for i := range capacity {
		go send(fmt.Sprintf("queued-%d", i))
	}
	time.Sleep(200 * time.Millisecond)

	// One more than capacity: rejected immediately, not silently dropped.
	go send("overflow")
	time.Sleep(200 * time.Millisecond)

	sys.open()

	var queueFull, succeeded int
	for range capacity + 2 {
		select {
		case resp := <-responses:
			switch {
			case resp.Success:
				succeeded++
			case resp.ErrorCode == ipc.CodeQueueFull:
				queueFull++
				if !resp.IsRetryable {
					t.Error("queue_full should be retryable")
				}
			default:
				t.Errorf("unexpected response: %s: %s", resp.ErrorCode, resp.Message)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out awaiting responses")
		}
	}

	if queueFull != 1 {
		t.Errorf("queue_full responses: got %d, want exactly 1", queueFull)
	}
	if succeeded != capacity+1 {
		t.Errorf("successes: got %d, want %d", succeeded, capacity+1)
	}
}

func TestDrainCompletesQueuedWork(t *testing.T) {
	sys := newBlockingSystem()
	l, client := startListener(t, testConfig(4, 1), sys)

	responses := make(chan *ipc.Response, 2)
	errs := make(chan error, 2)
	send := func(text string) {
		resp, err := client.Send(context.Background(), ipc.Envelope{Text: text, Operation: "correct"})
		if err != nil {
			errs <- err
			return
		}
		responses <- resp
	}

	go send("in-flight")
	select {
	case <-sys.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up first envelope")
	}

	go send("queued")
	time.Sleep(200 * time.Millisecond)

	drained := make(chan struct{})
	go func() {
		l.Drain()
		close(drained)
	}()

	// Wait for the Draining transition to take effect.
	deadline := time.Now().Add(5 * time.Second)
	for l.State() != listener.StateDraining && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// The endpoint is closed; new submissions cannot reach the listener.
	_, err := client.Send(context.Background(), ipc.Envelope{Text: "late", Operation: "correct"})
	if !errors.Is(err, ipc.ErrListenerUnavailable) {
		t.Errorf("late submission: got %v, want ErrListenerUnavailable", err)
	}

	sys.open()

	for range 2 {
		select {
		case resp := <-responses:
			if !resp.Success {
				t.Errorf("queued work should complete during drain, got %s: %s", resp.ErrorCode, resp.Message)
			}
		case err := <-errs:
			t.Errorf("send failed: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out awaiting drain completion")
		}
	}

	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		t.Fatal("drain never returned")
	}
	if l.State() != listener.StateStopped {
		t.Errorf("state after drain: got %s, want stopped", l.State())
	}
}

func TestDrainDeadlineRejectsQueuedWork(t *testing.T) {
	cfg := testConfig(4, 1)
	cfg.DrainGrace = "100ms"
	sys := newBlockingSystem()
	l, client := startListener(t, cfg, sys)

	inFlight := make(chan *ipc.Response, 1)
	queued := make(chan *ipc.Response, 1)
	send := func(text string, out chan *ipc.Response) {
		resp, err := client.Send(context.Background(), ipc.Envelope{Text: text, Operation: "correct"})
		if err != nil {
			t.Errorf("send %s: %v", text, err)
			return
		}
		out <- resp
	}

	go send("in-flight", inFlight)
	select {
	case <-sys.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up first envelope")
	}

	go send("queued", queued)
	time.Sleep(200 * time.Millisecond)

	go l.Drain()

	// Hold the worker past the grace deadline, then release it. The queued
	// envelope was never started and must be rejected, not processed.
	time.Sleep(400 * time.Millisecond)
	sys.open()

	select {
	case resp := <-inFlight:
		if !resp.Success {
			t.Errorf("in-flight work should complete, got %s", resp.ErrorCode)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight response never arrived")
	}

	select {
	case resp := <-queued:
		if resp.Success {
			t.Error("queued work past the deadline should be rejected")
		}
		if resp.ErrorCode != ipc.CodeShuttingDown {
			t.Errorf("error_code: got %q, want %q", resp.ErrorCode, ipc.CodeShuttingDown)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("queued response never arrived")
	}
}

func TestSecondListenerFailsToBind(t *testing.T) {
	sys := newBlockingSystem()
	sys.open()
	l, _ := startListener(t, testConfig(4, 1), sys)

	_, portStr, _ := net.SplitHostPort(l.Addr())
	port, _ := strconv.Atoi(portStr)

	cfg := testConfig(4, 1)
	cfg.Port = port
	second := listener.New(cfg, sys, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := second.Start(nil)
	if !errors.Is(err, listener.ErrBind) {
		t.Fatalf("error: got %v, want ErrBind", err)
	}
	if second.State() != listener.StateStopped {
		t.Errorf("state after failed bind: got %s, want stopped", second.State())
	}
}
