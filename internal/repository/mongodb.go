package repository

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"scanventory-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements Store using MongoDB.
type MongoDBStore struct {
	client *mongo.Client
	db     *mongo.Database
	items  *mongoItemRepository
	alerts *mongoAlertRepository
}

// NewMongoDBStore connects to MongoDB and prepares the items and alerts collections.
func NewMongoDBStore(uri, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client: client,
		db:     db,
		items:  &mongoItemRepository{coll: db.Collection("items")},
		alerts: &mongoAlertRepository{coll: db.Collection("alerts")},
	}

	if err := s.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	log.Printf("[MongoDBStore] Connected to %s", database)
	return s, nil
}

func (s *MongoDBStore) createIndexes(ctx context.Context) error {
	itemIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "shelf", Value: 1}}},
		{Keys: bson.D{{Key: "expiration_date", Value: 1}}},
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := s.items.coll.Indexes().CreateMany(ctx, itemIndexes); err != nil {
		log.Printf("[MongoDBStore] Warning: failed to create item indexes: %v", err)
	}

	alertIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "dismissed", Value: 1}}},
		{Keys: bson.D{{Key: "severity", Value: 1}}},
		{
			Keys: bson.D{{Key: "item_id", Value: 1}},
			Options: options.Index().
				SetName("ux_alerts_active_item").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dismissed": false}),
		},
	}
	// The active-alert index guards the one-active-alert-per-item rule, so it must exist.
	if _, err := s.alerts.coll.Indexes().CreateMany(ctx, alertIndexes); err != nil {
		return fmt.Errorf("failed to create alert indexes: %w", err)
	}
	return nil
}

// Items returns the item repository.
func (s *MongoDBStore) Items() ItemRepository { return s.items }

// Alerts returns the alert repository.
func (s *MongoDBStore) Alerts() AlertRepository { return s.alerts }

// GetStats returns statistics about the pantry collections.
func (s *MongoDBStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = "MongoDB"

	items, err := s.items.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	alerts, err := s.alerts.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	active, err := s.alerts.coll.CountDocuments(ctx, bson.M{"dismissed": false})
	if err != nil {
		return nil, err
	}
	stats["total_items"] = items
	stats["total_alerts"] = alerts
	stats["active_alerts"] = active

	var dbStats bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err == nil {
		switch size := dbStats["dataSize"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- items ---

type mongoItemRepository struct {
	coll *mongo.Collection
}

// Find returns the items matching filter.
func (r *mongoItemRepository) Find(ctx context.Context, filter model.ItemFilter) ([]model.Item, error) {
	query := bson.M{}
	if filter.Shelf != "" {
		query["shelf"] = filter.Shelf
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Barcode != "" {
		query["barcode"] = filter.Barcode
	}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
	}

	direction := 1
	if filter.Desc {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: filter.SortColumn(), Value: direction},
		{Key: "_id", Value: direction},
	})

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []model.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

// FindByID returns the item or nil if it does not exist.
func (r *mongoItemRepository) FindByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// Insert stores a new item.
func (r *mongoItemRepository) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	if _, err := r.coll.InsertOne(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	return r.FindByID(ctx, item.ID)
}

// Update applies a partial update.
func (r *mongoItemRepository) Update(ctx context.Context, id string, update model.ItemUpdate) (*model.Item, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Quantity != nil {
		set["quantity"] = *update.Quantity
	}
	if update.Shelf != nil {
		set["shelf"] = *update.Shelf
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.ExpirationDate != nil {
		set["expiration_date"] = *update.ExpirationDate
	}
	if update.Barcode != nil {
		set["barcode"] = *update.Barcode
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item model.Item
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return &item, nil
}

// Delete removes the item.
func (r *mongoItemRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// --- alerts ---

type mongoAlertRepository struct {
	coll *mongo.Collection
}

func alertQuery(filter model.AlertFilter) bson.M {
	query := bson.M{}
	if filter.ItemID != "" {
		query["item_id"] = filter.ItemID
	}
	if filter.Dismissed != nil {
		query["dismissed"] = *filter.Dismissed
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	return query
}

func alertSet(update model.AlertUpdate) bson.M {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.ItemName != nil {
		set["item_name"] = *update.ItemName
	}
	if update.ExpirationDate != nil {
		set["expiration_date"] = *update.ExpirationDate
	}
	if update.DaysUntilExpiry != nil {
		set["days_until_expiry"] = *update.DaysUntilExpiry
	}
	if update.Severity != nil {
		set["severity"] = *update.Severity
	}
	if update.Dismissed != nil {
		set["dismissed"] = *update.Dismissed
	}
	return set
}

// Find returns the alerts matching filter, newest first.
func (r *mongoAlertRepository) Find(ctx context.Context, filter model.AlertFilter) ([]model.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, alertQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := []model.Alert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}
	return alerts, nil
}

// FindActiveForItem returns the most recent active alert of an item, or nil.
func (r *mongoAlertRepository) FindActiveForItem(ctx context.Context, itemID string) (*model.Alert, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var alert model.Alert
	err := r.coll.FindOne(ctx, bson.M{"item_id": itemID, "dismissed": false}, opts).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active alert: %w", err)
	}
	return &alert, nil
}

// Insert stores a new alert.
func (r *mongoAlertRepository) Insert(ctx context.Context, alert *model.Alert) (*model.Alert, error) {
	if _, err := r.coll.InsertOne(ctx, alert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrActiveAlertExists
		}
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	inserted := *alert
	return &inserted, nil
}

// Update applies a partial update.
func (r *mongoAlertRepository) Update(ctx context.Context, id string, update model.AlertUpdate) (*model.Alert, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var alert model.Alert
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": alertSet(update)}, opts).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrActiveAlertExists
		}
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return &alert, nil
}

// UpdateMany applies update to every alert matching filter.
func (r *mongoAlertRepository) UpdateMany(ctx context.Context, filter model.AlertFilter, update model.AlertUpdate) (int64, error) {
	result, err := r.coll.UpdateMany(ctx, alertQuery(filter), bson.M{"$set": alertSet(update)})
	if err != nil {
		return 0, fmt.Errorf("failed to update alerts: %w", err)
	}
	return result.ModifiedCount, nil
}

// Ensure MongoDBStore implements Store
var (
	_ Store           = (*MongoDBStore)(nil)
	_ ItemRepository  = (*mongoItemRepository)(nil)
	_ AlertRepository = (*mongoAlertRepository)(nil)
)
