package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stealthtrack/internal/constants"
)

type Repository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	ListEnabledRules(ctx context.Context) ([]Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id string) (bool, error)
	IncrementTriggerCount(ctx context.Context, id string, triggeredAt time.Time) error
	EnsureIndexes(ctx context.Context) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection(constants.CollectionRules),
	}
}

func (r *mongoRepository) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if rule.Filters == nil {
		rule.Filters = []Filter{}
	}
	if rule.FieldMap == nil {
		rule.FieldMap = []FieldMapping{}
	}

	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *mongoRepository) GetRule(ctx context.Context, id string) (*Rule, error) {
	var rule Rule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoRepository) ListRules(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, bson.M{})
}

func (r *mongoRepository) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, bson.M{"enabled": true})
}

func (r *mongoRepository) list(ctx context.Context, query bson.M) ([]Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []Rule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

// UpdateRule replaces the operator-editable fields. Counters are owned
// by IncrementTriggerCount and never written here.
func (r *mongoRepository) UpdateRule(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"name":        rule.Name,
		"enabled":     rule.Enabled,
		"webhook_url": rule.WebhookURL,
		"filters":     rule.Filters,
		"field_map":   rule.FieldMap,
		"updated_at":  rule.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": rule.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (r *mongoRepository) DeleteRule(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// IncrementTriggerCount bumps the counter and timestamp in one atomic
// update so concurrent live fires never lose an increment.
func (r *mongoRepository) IncrementTriggerCount(ctx context.Context, id string, triggeredAt time.Time) error {
	update := bson.M{
		"$inc": bson.M{"trigger_count": 1},
		"$set": bson.M{"last_triggered_at": triggeredAt},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment trigger count: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (r *mongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "enabled", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create rule indexes: %w", err)
	}
	return nil
}
