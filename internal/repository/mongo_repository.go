package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// snapshotRecord stores the document verbatim next to a few queryable fields.
type snapshotRecord struct {
	CartID       string               `bson:"_id"`
	RestaurantID string               `bson:"restaurant_id"`
	Status       string               `bson:"status"`
	Version      int64                `bson:"version"`
	Total        primitive.Decimal128 `bson:"total"`
	MemberCount  int                  `bson:"member_count"`
	Document     string               `bson:"document"`
	ArchivedAt   time.Time            `bson:"archived_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) SnapshotRepository {
	return &mongoRepository{
		collection: db.Collection("teamcart_snapshots"),
		now:        time.Now,
	}
}

// SaveSnapshot replaces any earlier snapshot of the same cart, so a redelivered
// completion event is harmless.
func (m *mongoRepository) SaveSnapshot(ctx context.Context, cart domain.TeamCart) error {
	doc, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	total, err := primitive.ParseDecimal128(cart.Total.String())
	if err != nil {
		return fmt.Errorf("failed to convert total: %w", err)
	}

	record := snapshotRecord{
		CartID:       cart.ID,
		RestaurantID: cart.RestaurantID,
		Status:       string(cart.Status),
		Version:      cart.Version,
		Total:        total,
		MemberCount:  len(cart.Members),
		Document:     string(doc),
		ArchivedAt:   m.now().UTC(),
	}

	filter := bson.M{"_id": cart.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, filter, record, opts); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (m *mongoRepository) GetSnapshot(ctx context.Context, cartID string) (*domain.TeamCart, error) {
	var record snapshotRecord
	err := m.collection.FindOne(ctx, bson.M{"_id": cartID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var cart domain.TeamCart
	if err := json.Unmarshal([]byte(record.Document), &cart); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &cart, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "restaurant_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "archived_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
