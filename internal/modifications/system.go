package modifications

import (
	"context"

	"github.com/JaimeStill/quill/internal/provider"
	"github.com/JaimeStill/quill/pkg/pagination"
)

// System defines the public contract for modification domain operations.
type System interface {
	Handler() *Handler

	Process(ctx context.Context, req Request) (*Result, error)
	Analyze(ctx context.Context, text, userID string) (*Analysis, error)

	History(
		ctx context.Context,
		userID string,
		page pagination.PageRequest,
		operation string,
	) (*pagination.PageResult[RecordSummary], error)

	Statistics(ctx context.Context, userID string) (*Statistics, error)
}

// Provider is the AI invocation boundary consumed by the orchestrator.
// Implemented by *provider.Client; stubbed in tests.
type Provider interface {
	Invoke(ctx context.Context, text, operation string, options map[string]any) provider.Outcome
	Health(ctx context.Context) error
	Model() string
}

// Sink is the durable-storage boundary for modification records. Save
// failures are logged by the orchestrator and never fail the caller-visible
// result; History and Statistics failures surface to their callers.
type Sink interface {
	Save(ctx context.Context, rec *Record) error

	History(
		ctx context.Context,
		userID string,
		page pagination.PageRequest,
		operation string,
	) (*pagination.PageResult[RecordSummary], error)

	Statistics(ctx context.Context, userID string) (*Statistics, error)

	Ping(ctx context.Context) error
}
