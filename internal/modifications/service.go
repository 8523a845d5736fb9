package modifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/quill/internal/provider"
	"github.com/JaimeStill/quill/pkg/formatting"
	"github.com/JaimeStill/quill/pkg/pagination"
)

type service struct {
	provider   Provider
	sink       Sink
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the modification System backed by the given provider and
// record sink.
func New(p Provider, sink Sink, logger *slog.Logger, pag pagination.Config) System {
	return &service{
		provider:   p,
		sink:       sink,
		logger:     logger.With("system", "modifications"),
		pagination: pag,
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.pagination)
}

// Process validates the request, invokes the provider exactly once (retries
// live inside the provider client), and persists a record of the outcome.
// Persistence failures are logged but never fail a result already obtained.
func (s *service) Process(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.CorrelationID == uuid.Nil {
		req.CorrelationID = uuid.New()
	}
	correlationID := req.CorrelationID.String()

	logger := s.logger.With(
		"correlation_id", correlationID,
		"operation", req.Operation,
	)
	logger.Info("processing modification",
		"text_length", len(req.Text),
		"user_id", req.UserID,
	)

	start := time.Now()
	out := s.provider.Invoke(ctx, req.Text, string(req.Operation), req.Options)
	elapsed := time.Since(start)

	if out.Failure != nil {
		logger.Error("provider invocation failed",
			"kind", out.Failure.Kind,
			"status", out.Failure.StatusCode,
			"error", out.Failure.Message,
		)
		if out.Failure.Kind == provider.FailurePermanent {
			return nil, fmt.Errorf("%w: %s", ErrProviderRejected, out.Failure.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, out.Failure.Message)
	}

	result := &Result{
		OriginalText:      req.Text,
		ModifiedText:      out.ModifiedText,
		Operation:         req.Operation,
		CorrelationID:     correlationID,
		Timestamp:         time.Now().UTC(),
		ProcessingTimeMs:  elapsed.Milliseconds(),
		ModelUsed:         out.ModelUsed,
		WordCountOriginal: formatting.WordCount(req.Text),
		WordCountModified: formatting.WordCount(out.ModifiedText),
	}

	record := &Record{
		CorrelationID:     result.CorrelationID,
		UserID:            req.UserID,
		Operation:         string(result.Operation),
		OriginalText:      result.OriginalText,
		ModifiedText:      result.ModifiedText,
		ModelUsed:         result.ModelUsed,
		TokensUsed:        out.TokensUsed,
		ProcessingTimeMs:  result.ProcessingTimeMs,
		Timestamp:         result.Timestamp,
		WordCountOriginal: result.WordCountOriginal,
		WordCountModified: result.WordCountModified,
	}
	if err := s.sink.Save(ctx, record); err != nil {
		logger.Error("failed to persist modification record", "error", err)
	}

	logger.Info("modification complete",
		"processing_ms", result.ProcessingTimeMs,
		"model", result.ModelUsed,
	)
	return result, nil
}

// Analyze runs the analyze operation and decodes the structured result.
// Provider failures and unparseable content fall back to locally computed
// metrics; validation failures surface to the caller.
func (s *service) Analyze(ctx context.Context, text, userID string) (*Analysis, error) {
	req := Request{
		Text:      text,
		Operation: OperationAnalyze,
		UserID:    userID,
	}

	result, err := s.Process(ctx, req)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRejected) {
			s.logger.Warn("ai analysis unavailable, using basic analysis", "error", err)
			return basicAnalysis(req.Text), nil
		}
		return nil, err
	}

	analysis, err := formatting.Parse[Analysis](result.ModifiedText)
	if err != nil {
		s.logger.Warn("analysis response not parseable, using basic analysis", "error", err)
		return basicAnalysis(req.Text), nil
	}
	if analysis.WordCount == 0 {
		analysis.WordCount = formatting.WordCount(req.Text)
	}
	return &analysis, nil
}

func (s *service) History(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	operation string,
) (*pagination.PageResult[RecordSummary], error) {
	page.Normalize(s.pagination)
	return s.sink.History(ctx, userID, page, operation)
}

func (s *service) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	return s.sink.Statistics(ctx, userID)
}
