package automation

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stealthtrack/internal/constants"
)

// RunRepository is the append-only run ledger. Entries are never
// updated; the only delete path is the cascade when the owning rule is
// removed.
type RunRepository interface {
	InsertRun(ctx context.Context, run *Run) error
	ListRunsByRule(ctx context.Context, ruleID string, limit int64) ([]Run, error)
	DeleteRunsByRule(ctx context.Context, ruleID string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoRunRepository struct {
	collection *mongo.Collection
}

func NewRunRepository(db *mongo.Database) RunRepository {
	return &mongoRunRepository{
		collection: db.Collection(constants.CollectionRuns),
	}
}

func (r *mongoRunRepository) InsertRun(ctx context.Context, run *Run) error {
	if _, err := r.collection.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *mongoRunRepository) ListRunsByRule(ctx context.Context, ruleID string, limit int64) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultRunsLimit
	}
	if limit > constants.MaxRunsLimit {
		limit = constants.MaxRunsLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "triggered_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"rule_id": ruleID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []Run
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	return runs, nil
}

func (r *mongoRunRepository) DeleteRunsByRule(ctx context.Context, ruleID string) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"rule_id": ruleID}); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}

func (r *mongoRunRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rule_id", Value: 1}, {Key: "triggered_at", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create run indexes: %w", err)
	}
	return nil
}
