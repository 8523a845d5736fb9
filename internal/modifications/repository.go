package modifications

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JaimeStill/quill/pkg/database"
	"github.com/JaimeStill/quill/pkg/formatting"
	"github.com/JaimeStill/quill/pkg/pagination"
)

const (
	recordCollection = "modification_records"
	previewLength    = 100
)

// Repository persists modification records to MongoDB. It implements Sink.
type Repository struct {
	db     database.System
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewRepository creates the Mongo-backed record sink.
func NewRepository(db database.System, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		coll:   db.Collection(recordCollection),
		logger: logger.With("system", "records"),
	}
}

// Init ensures the history query index exists. Run once at startup.
func (r *Repository) Init(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("create record index: %w", err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert modification record: %w", err)
	}
	return nil
}

// History returns the user's records newest first, optionally filtered by
// operation, with text fields truncated to listing previews.
func (r *Repository) History(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	operation string,
) (*pagination.PageResult[RecordSummary], error) {
	filter := bson.M{"user_id": userID}
	if operation != "" {
		filter["operation"] = operation
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count modification records: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.PageSize))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query modification records: %w", err)
	}

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode modification records: %w", err)
	}

	summaries := make([]RecordSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, RecordSummary{
			ID:               rec.ID.Hex(),
			OriginalText:     formatting.Truncate(rec.OriginalText, previewLength),
			ModifiedText:     formatting.Truncate(rec.ModifiedText, previewLength),
			Operation:        rec.Operation,
			Timestamp:        rec.Timestamp,
			ProcessingTimeMs: rec.ProcessingTimeMs,
			ModelUsed:        rec.ModelUsed,
		})
	}

	result := pagination.NewPageResult(summaries, int(total), page.Page, page.PageSize)
	return &result, nil
}

// Statistics aggregates per-operation counts and average processing time for
// a user. A user with no records yields zeroed statistics, not an error.
func (r *Repository) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "user_id", Value: userID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$operation"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_processing_ms", Value: bson.D{{Key: "$avg", Value: "$processing_time_ms"}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate modification statistics: %w", err)
	}

	var groups []struct {
		Operation       string  `bson:"_id"`
		Count           int     `bson:"count"`
		AvgProcessingMs float64 `bson:"avg_processing_ms"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode modification statistics: %w", err)
	}

	stats := &Statistics{
		UserID:     userID,
		Operations: make(map[string]OperationStats, len(groups)),
	}

	var weightedMs float64
	for _, group := range groups {
		stats.TotalModifications += group.Count
		weightedMs += group.AvgProcessingMs * float64(group.Count)
		stats.Operations[group.Operation] = OperationStats{
			Count:               group.Count,
			AvgProcessingTimeMs: group.AvgProcessingMs,
		}
	}
	if stats.TotalModifications > 0 {
		stats.AvgProcessingTimeMs = weightedMs / float64(stats.TotalModifications)
	}

	return stats, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
