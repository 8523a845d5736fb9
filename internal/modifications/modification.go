// Package modifications implements the text modification domain: request
// validation, orchestration of the AI provider call, durable history records,
// and the HTTP endpoints that expose them.
package modifications

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxTextLength bounds the accepted input text, in characters.
const MaxTextLength = 10000

// Operation is the enumerated set of supported text modifications.
type Operation string

const (
	OperationSummarize Operation = "summarize"
	OperationImprove   Operation = "improve"
	OperationTranslate Operation = "translate"
	OperationCorrect   Operation = "correct"
	OperationExpand    Operation = "expand"
	OperationSimplify  Operation = "simplify"
	OperationAnalyze   Operation = "analyze"
)

// Operations returns all supported operations.
func Operations() []Operation {
	return []Operation{
		OperationSummarize,
		OperationImprove,
		OperationTranslate,
		OperationCorrect,
		OperationExpand,
		OperationSimplify,
		OperationAnalyze,
	}
}

// Valid reports whether the operation is a member of the supported set.
func (o Operation) Valid() bool {
	switch o {
	case OperationSummarize, OperationImprove, OperationTranslate,
		OperationCorrect, OperationExpand, OperationSimplify, OperationAnalyze:
		return true
	}
	return false
}

// Request carries a single text modification through the orchestrator.
// CorrelationID ties the request to its result and log lines; a zero value
// is populated during processing.
type Request struct {
	Text          string         `json:"text"`
	Operation     Operation      `json:"operation"`
	UserID        string         `json:"user_id,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
	CorrelationID uuid.UUID      `json:"-"`
}

// Validate normalizes the text and checks request shape. It runs before any
// provider call; failures never reach the network.
func (r *Request) Validate() error {
	r.Text = strings.TrimSpace(r.Text)

	if r.Text == "" {
		return ErrEmptyText
	}
	if len(r.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	if !r.Operation.Valid() {
		return ErrInvalidOperation
	}
	return nil
}

// Result is the outcome of a successful modification. Produced exactly once
// per accepted request and never mutated afterward. ProcessingTimeMs spans
// only the provider call, not persistence.
type Result struct {
	OriginalText      string    `json:"original_text"`
	ModifiedText      string    `json:"modified_text"`
	Operation         Operation `json:"operation"`
	CorrelationID     string    `json:"correlation_id"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	ModelUsed         string    `json:"ai_model_used,omitempty"`
	WordCountOriginal int       `json:"word_count_original"`
	WordCountModified int       `json:"word_count_modified"`
}

// Record is the durable form of a Result, owned by the record sink.
// Records are insert-only; retention is an external concern.
type Record struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CorrelationID     string             `bson:"correlation_id" json:"correlation_id"`
	UserID            string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Operation         string             `bson:"operation" json:"operation"`
	OriginalText      string             `bson:"original_text" json:"original_text"`
	ModifiedText      string             `bson:"modified_text" json:"modified_text"`
	ModelUsed         string             `bson:"ai_model_used" json:"ai_model_used"`
	TokensUsed        int                `bson:"tokens_used,omitempty" json:"tokens_used,omitempty"`
	ProcessingTimeMs  int64              `bson:"processing_time_ms" json:"processing_time_ms"`
	Timestamp         time.Time          `bson:"timestamp" json:"timestamp"`
	WordCountOriginal int                `bson:"word_count_original" json:"word_count_original"`
	WordCountModified int                `bson:"word_count_modified" json:"word_count_modified"`
}

// RecordSummary is the history listing shape: full metadata with truncated
// text previews.
type RecordSummary struct {
	ID               string    `json:"id"`
	OriginalText     string    `json:"original_text"`
	ModifiedText     string    `json:"modified_text"`
	Operation        string    `json:"operation"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ModelUsed        string    `json:"ai_model_used"`
}

// OperationStats aggregates record counts and timing for one operation.
type OperationStats struct {
	Count               int     `json:"count"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}

// Statistics summarizes a user's modification history.
type Statistics struct {
	UserID              string                    `json:"user_id"`
	TotalModifications  int                       `json:"total_modifications"`
	AvgProcessingTimeMs float64                   `json:"avg_processing_time_ms"`
	Operations          map[string]OperationStats `json:"operations"`
}
