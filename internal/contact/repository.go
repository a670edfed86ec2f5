package contact

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stealthtrack/internal/constants"
)

type Repository interface {
	FindByContactID(ctx context.Context, contactID string) (*Contact, error)
	Insert(ctx context.Context, contact *Contact) error
	ApplySet(ctx context.Context, contactID string, set bson.M) error
	ClearMergedInto(ctx context.Context, contactID string) error
	PullMergedChild(ctx context.Context, parentContactID, childContactID string) error
	List(ctx context.Context, search string, includeMerged bool) ([]Contact, error)
	DeleteByContactID(ctx context.Context, contactID string) (bool, error)
	FindIPCandidates(ctx context.Context, clientIP, excludeContactID string, since time.Time) ([]Contact, error)
	FindBySession(ctx context.Context, sessionID string) ([]Contact, error)
	CountActive(ctx context.Context) (int64, error)

	InsertVisit(ctx context.Context, visit *PageVisit) error
	VisitsByContact(ctx context.Context, contactID string) ([]PageVisit, error)
	CountVisits(ctx context.Context, contactID string) (int64, error)
	CountAllVisits(ctx context.Context) (int64, error)
	CountVisitsSince(ctx context.Context, since time.Time) (int64, error)
	ReassignVisits(ctx context.Context, fromContactID, toContactID string) error
	RestoreVisits(ctx context.Context, parentContactID, originalContactID string) error
	DeleteVisitsByContact(ctx context.Context, contactID string) error

	EnsureIndexes(ctx context.Context) error
}

type mongoRepository struct {
	contacts *mongo.Collection
	visits   *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		contacts: db.Collection(constants.CollectionContacts),
		visits:   db.Collection(constants.CollectionPageVisits),
	}
}

func (r *mongoRepository) FindByContactID(ctx context.Context, contactID string) (*Contact, error) {
	var c Contact
	err := r.contacts.FindOne(ctx, bson.M{"contact_id": contactID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

func (r *mongoRepository) Insert(ctx context.Context, contact *Contact) error {
	if _, err := r.contacts.InsertOne(ctx, contact); err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// ApplySet runs a raw $set against one contact. The service layer builds
// the fill-only update maps; keeping this generic keeps stitch and upsert
// on a single write path.
func (r *mongoRepository) ApplySet(ctx context.Context, contactID string, set bson.M) error {
	_, err := r.contacts.UpdateOne(ctx, bson.M{"contact_id": contactID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

func (r *mongoRepository) ClearMergedInto(ctx context.Context, contactID string) error {
	_, err := r.contacts.UpdateOne(ctx,
		bson.M{"contact_id": contactID},
		bson.M{"$unset": bson.M{"merged_into": ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear merged_into: %w", err)
	}
	return nil
}

func (r *mongoRepository) PullMergedChild(ctx context.Context, parentContactID, childContactID string) error {
	_, err := r.contacts.UpdateOne(ctx,
		bson.M{"contact_id": parentContactID},
		bson.M{"$pull": bson.M{"merged_children": childContactID}},
	)
	if err != nil {
		return fmt.Errorf("failed to pull merged child: %w", err)
	}
	return nil
}

func (r *mongoRepository) List(ctx context.Context, search string, includeMerged bool) ([]Contact, error) {
	query := bson.M{}
	if !includeMerged {
		query["merged_into"] = bson.M{"$exists": false}
	}
	if search != "" {
		query["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": search, "$options": "i"}},
			bson.M{"email": bson.M{"$regex": search, "$options": "i"}},
			bson.M{"phone": bson.M{"$regex": search, "$options": "i"}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(constants.DefaultContactLimit)

	cursor, err := r.contacts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []Contact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

func (r *mongoRepository) DeleteByContactID(ctx context.Context, contactID string) (bool, error) {
	result, err := r.contacts.DeleteOne(ctx, bson.M{"contact_id": contactID})
	if err != nil {
		return false, fmt.Errorf("failed to delete contact: %w", err)
	}
	if result.DeletedCount == 0 {
		return false, nil
	}
	// Remove the deleted contact from any parent's merged_children list.
	_, err = r.contacts.UpdateMany(ctx,
		bson.M{"merged_children": contactID},
		bson.M{"$pull": bson.M{"merged_children": contactID}},
	)
	if err != nil {
		return true, fmt.Errorf("failed to detach merged child: %w", err)
	}
	return true, nil
}

func (r *mongoRepository) FindIPCandidates(ctx context.Context, clientIP, excludeContactID string, since time.Time) ([]Contact, error) {
	query := bson.M{
		"client_ip":   clientIP,
		"contact_id":  bson.M{"$ne": excludeContactID},
		"merged_into": bson.M{"$exists": false},
		"created_at":  bson.M{"$gte": since},
	}

	opts := options.Find().SetLimit(constants.AutoStitchCandidates)
	cursor, err := r.contacts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stitch candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []Contact
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode stitch candidates: %w", err)
	}
	return candidates, nil
}

func (r *mongoRepository) FindBySession(ctx context.Context, sessionID string) ([]Contact, error) {
	query := bson.M{
		"session_id":  sessionID,
		"merged_into": bson.M{"$exists": false},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(20)

	cursor, err := r.contacts.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts by session: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []Contact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

func (r *mongoRepository) CountActive(ctx context.Context) (int64, error) {
	count, err := r.contacts.CountDocuments(ctx, bson.M{"merged_into": bson.M{"$exists": false}})
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

func (r *mongoRepository) InsertVisit(ctx context.Context, visit *PageVisit) error {
	if _, err := r.visits.InsertOne(ctx, visit); err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}
	return nil
}

func (r *mongoRepository) VisitsByContact(ctx context.Context, contactID string) ([]PageVisit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(constants.MaxVisitsPerContact)

	cursor, err := r.visits.Find(ctx, bson.M{"contact_id": contactID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer cursor.Close(ctx)

	var visits []PageVisit
	if err := cursor.All(ctx, &visits); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}
	return visits, nil
}

func (r *mongoRepository) CountVisits(ctx context.Context, contactID string) (int64, error) {
	count, err := r.visits.CountDocuments(ctx, bson.M{"contact_id": contactID})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func (r *mongoRepository) CountAllVisits(ctx context.Context) (int64, error) {
	count, err := r.visits.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func (r *mongoRepository) CountVisitsSince(ctx context.Context, since time.Time) (int64, error) {
	count, err := r.visits.CountDocuments(ctx, bson.M{"timestamp": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

// ReassignVisits moves all of a child's visits to the parent, tagging
// each with its original owner so a later re-stitch can undo the move.
func (r *mongoRepository) ReassignVisits(ctx context.Context, fromContactID, toContactID string) error {
	_, err := r.visits.UpdateMany(ctx,
		bson.M{"contact_id": fromContactID},
		bson.M{"$set": bson.M{"contact_id": toContactID, "original_contact_id": fromContactID}},
	)
	if err != nil {
		return fmt.Errorf("failed to reassign visits: %w", err)
	}
	return nil
}

// RestoreVisits gives visits back to the child they originally belonged
// to, used when a child moves between parents.
func (r *mongoRepository) RestoreVisits(ctx context.Context, parentContactID, originalContactID string) error {
	_, err := r.visits.UpdateMany(ctx,
		bson.M{"contact_id": parentContactID, "original_contact_id": originalContactID},
		bson.M{"$set": bson.M{"contact_id": originalContactID}},
	)
	if err != nil {
		return fmt.Errorf("failed to restore visits: %w", err)
	}
	return nil
}

func (r *mongoRepository) DeleteVisitsByContact(ctx context.Context, contactID string) error {
	if _, err := r.visits.DeleteMany(ctx, bson.M{"contact_id": contactID}); err != nil {
		return fmt.Errorf("failed to delete visits: %w", err)
	}
	return nil
}

func (r *mongoRepository) EnsureIndexes(ctx context.Context) error {
	contactIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "contact_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "client_ip", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "merged_into", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := r.contacts.Indexes().CreateMany(ctx, contactIndexes); err != nil {
		return fmt.Errorf("failed to create contact indexes: %w", err)
	}

	visitIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "contact_id", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "contact_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	}
	if _, err := r.visits.Indexes().CreateMany(ctx, visitIndexes); err != nil {
		return fmt.Errorf("failed to create visit indexes: %w", err)
	}

	return nil
}
