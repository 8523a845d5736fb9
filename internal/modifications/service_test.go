package modifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/JaimeStill/quill/internal/modifications"
	"github.com/JaimeStill/quill/internal/provider"
	"github.com/JaimeStill/quill/pkg/pagination"
)

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	lastOp   string
	lastText string
	outcome  provider.Outcome
	health   error
}

func (p *stubProvider) Invoke(_ context.Context, text, operation string, _ map[string]any) provider.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastOp = operation
	p.lastText = text
	return p.outcome
}

func (p *stubProvider) Health(context.Context) error { return p.health }
func (p *stubProvider) Model() string                { return "stub-model" }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memorySink struct {
	mu      sync.Mutex
	records []*modifications.Record
	saveErr error
}

func (s *memorySink) Save(_ context.Context, rec *modifications.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) History(
	_ context.Context,
	userID string,
	page pagination.PageRequest,
	operation string,
) (*pagination.PageResult[modifications.RecordSummary], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summaries []modifications.RecordSummary
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if operation != "" && rec.Operation != operation {
			continue
		}
		summaries = append(summaries, modifications.RecordSummary{
			OriginalText: rec.OriginalText,
			ModifiedText: rec.ModifiedText,
			Operation:    rec.Operation,
		})
	}
	result := pagination.NewPageResult(summaries, len(summaries), page.Page, page.PageSize)
	return &result, nil
}

func (s *memorySink) Statistics(_ context.Context, userID string) (*modifications.Statistics, error) {
	return &modifications.Statistics{UserID: userID, Operations: map[string]modifications.OperationStats{}}, nil
}

func (s *memorySink) Ping(context.Context) error { return nil }

func (s *memorySink) saved() []*modifications.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*modifications.Record(nil), s.records...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSystem(p modifications.Provider, sink modifications.Sink) modifications.System {
	cfg := pagination.Config{}
	cfg.Finalize(nil)
	return modifications.New(p, sink, testLogger(), cfg)
}

func TestProcessSuccessPersistsRecord(t *testing.T) {
	p := &stubProvider{outcome: provider.Outcome{
		ModifiedText: "hello world",
		ModelUsed:    "stub-model-0613",
		TokensUsed:   12,
	}}
	sink := &memorySink{}
	sys := newSystem(p, sink)

	result, err := sys.Process(context.Background(), modifications.Request{
		Text:      "hello wrld",
		Operation: modifications.OperationCorrect,
		UserID:    "user-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.ModifiedText != "hello world" {
		t.Errorf("modified text: got %q", result.ModifiedText)
	}
	if result.CorrelationID == "" {
		t.Error("expected a correlation id")
	}
	if result.WordCountOriginal != 2 || result.WordCountModified != 2 {
		t.Errorf("word counts: got %d/%d", result.WordCountOriginal, result.WordCountModified)
	}

	records := sink.saved()
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	rec := records[0]
	if rec.CorrelationID != result.CorrelationID {
		t.Errorf("record correlation id: got %q, want %q", rec.CorrelationID, result.CorrelationID)
	}
	if rec.UserID != "user-1" || rec.Operation != "correct" || rec.TokensUsed != 12 {
		t.Errorf("record fields: %+v", rec)
	}
}

func TestProcessValidationSkipsProvider(t *testing.T) {
	tests := []struct {
		name string
		req  modifications.Request
		want error
	}{
		{
			name: "empty text",
			req:  modifications.Request{Text: "   ", Operation: modifications.OperationSummarize},
			want: modifications.ErrEmptyText,
		},
		{
			name: "text too long",
			req: modifications.Request{
				Text:      strings.Repeat("a", modifications.MaxTextLength+1),
				Operation: modifications.OperationSummarize,
			},
			want: modifications.ErrTextTooLong,
		},
		{
			name: "unsupported operation",
			req:  modifications.Request{Text: "hello", Operation: "embellish"},
			want: modifications.ErrInvalidOperation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{}
			sys := newSystem(p, &memorySink{})

			_, err := sys.Process(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error: got %v, want %v", err, tc.want)
			}
			if p.callCount() != 0 {
				t.Errorf("provider called %d times for invalid request", p.callCount())
			}
		})
	}
}

func TestProcessMapsProviderFailures(t *testing.T) {
	tests := []struct {
		name      string
		failure   *provider.Failure
		want      error
		retryable bool
	}{
		{
			name:      "transient maps to unavailable",
			failure:   &provider.Failure{Kind: provider.FailureTransient, Message: "status 503"},
			want:      modifications.ErrProviderUnavailable,
			retryable: true,
		},
		{
			name:      "permanent maps to rejected",
			failure:   &provider.Failure{Kind: provider.FailurePermanent, Message: "status 400"},
			want:      modifications.ErrProviderRejected,
			retryable: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{outcome: provider.Outcome{Failure: tc.failure}}
			sink := &memorySink{}
			sys := newSystem(p, sink)

			_, err := sys.Process(context.Background(), modifications.Request{
				Text:      "hello",
				Operation: modifications.OperationImprove,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("error: got %v, want %v", err, tc.want)
			}
			if got := modifications.IsRetryable(err); got != tc.retryable {
				t.Errorf("retryable: got %v, want %v", got, tc.retryable)
			}
			if len(sink.saved()) != 0 {
				t.Error("failed modification should not persist a record")
			}
		})
	}
}

func TestProcessSaveFailureDoesNotFailResult(t *testing.T) {
	p := &stubProvider{outcome: provider.Outcome{ModifiedText: "shorter", ModelUsed: "m"}}
	sink := &memorySink{saveErr: errors.New("mongo down")}
	sys := newSystem(p, sink)

	result, err := sys.Process(context.Background(), modifications.Request{
		Text:      "a longer sentence",
		Operation: modifications.OperationSummarize,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.ModifiedText != "shorter" {
		t.Errorf("modified text: got %q", result.ModifiedText)
	}
}

func TestAnalyzeParsesStructuredResponse(t *testing.T) {
	payload, _ := json.Marshal(modifications.Analysis{
		WordCount:     3,
		SentenceCount: 1,
		Sentiment:     "positive",
		Language:      "en",
		Tone:          "casual",
		KeyTopics:     []string{"greetings"},
		Summary:       "a greeting",
	})
	p := &stubProvider{outcome: provider.Outcome{ModifiedText: string(payload), ModelUsed: "m"}}
	sys := newSystem(p, &memorySink{})

	analysis, err := sys.Analyze(context.Background(), "hello there friend", "user-1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Sentiment != "positive" || analysis.Language != "en" {
		t.Errorf("analysis: %+v", analysis)
	}
	if p.lastOp != "analyze" {
		t.Errorf("operation: got %q, want analyze", p.lastOp)
	}
}

func TestAnalyzeFallsBackWhenProviderUnavailable(t *testing.T) {
	p := &stubProvider{outcome: provider.Outcome{
		Failure: &provider.Failure{Kind: provider.FailureTransient, Message: "timeout"},
	}}
	sys := newSystem(p, &memorySink{})

	analysis, err := sys.Analyze(context.Background(), "One sentence here. And another one!", "user-1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.WordCount != 6 {
		t.Errorf("word count: got %d, want 6", analysis.WordCount)
	}
	if analysis.SentenceCount != 2 {
		t.Errorf("sentence count: got %d, want 2", analysis.SentenceCount)
	}
	if analysis.Sentiment != "unknown" {
		t.Errorf("sentiment: got %q, want unknown", analysis.Sentiment)
	}
}

func TestAnalyzeFallsBackOnUnparseableContent(t *testing.T) {
	p := &stubProvider{outcome: provider.Outcome{ModifiedText: "not json at all", ModelUsed: "m"}}
	sys := newSystem(p, &memorySink{})

	analysis, err := sys.Analyze(context.Background(), "plain text", "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Language != "unknown" {
		t.Errorf("expected basic fallback, got %+v", analysis)
	}
}

func TestAnalyzeValidationErrorSurfaces(t *testing.T) {
	sys := newSystem(&stubProvider{}, &memorySink{})

	_, err := sys.Analyze(context.Background(), "   ", "user-1")
	if !errors.Is(err, modifications.ErrEmptyText) {
		t.Fatalf("error: got %v, want ErrEmptyText", err)
	}
}
