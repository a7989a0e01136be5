package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"xandpulse/config"
	"xandpulse/models"
)

var (
	_ SnapshotStore     = (*MongoDBService)(nil)
	_ ActivityStore     = (*MongoDBService)(nil)
	_ SubscriptionStore = (*MongoDBService)(nil)
	_ AlertFeedStore    = (*MongoDBService)(nil)
)

type MongoDBService struct {
	client  *mongo.Client
	db      *mongo.Database
	enabled bool
}

const (
	CollectionNetworkSnapshots = "network_snapshots"
	CollectionNodeRecords      = "node_records"
	CollectionActivityEvents   = "activity_events"
	CollectionSubscriptions    = "subscriptions"
	CollectionAlertFeed        = "alert_feed"

	snapshotRetention = 24 * time.Hour

	// mongo server error code for "collection already exists"
	codeNamespaceExists = 48
)

func NewMongoDBService(cfg *config.Config) (*MongoDBService, error) {
	if !cfg.MongoDB.Enabled {
		log.Println("MongoDB is disabled in configuration")
		return &MongoDBService{enabled: false}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	service := &MongoDBService{
		client:  client,
		db:      client.Database(cfg.MongoDB.Database),
		enabled: true,
	}

	if err := service.createCollections(ctx); err != nil {
		log.Warnf("⚠️  Failed to create collections: %v", err)
	}
	if err := service.createIndexes(ctx); err != nil {
		log.Warnf("⚠️  Failed to create indexes: %v", err)
	}

	log.Printf("✓ MongoDB connected to database: %s", cfg.MongoDB.Database)
	return service, nil
}

func (m *MongoDBService) Enabled() bool {
	return m != nil && m.enabled
}

// createCollections makes the activity feed a capped collection so the
// server itself keeps only the newest events.
func (m *MongoDBService) createCollections(ctx context.Context) error {
	err := m.db.CreateCollection(ctx, CollectionActivityEvents, options.CreateCollection().
		SetCapped(true).
		SetSizeInBytes(1<<20).
		SetMaxDocuments(maxActivityEvents))
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return nil
	}
	return err
}

func (m *MongoDBService) createIndexes(ctx context.Context) error {
	_, err := m.db.Collection(CollectionNetworkSnapshots).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("timestamp_desc"),
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection(CollectionNodeRecords).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "node_id", Value: 1}},
		Options: options.Index().SetName("node_id").SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection(CollectionActivityEvents).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("timestamp_desc"),
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection(CollectionSubscriptions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "node_ids", Value: 1}},
			Options: options.Index().SetName("node_ids"),
		},
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection(CollectionAlertFeed).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "subscription_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("subscription_created"),
		},
	})
	return err
}

func (m *MongoDBService) Close() error {
	if !m.Enabled() || m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDBService) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("MongoDB not enabled")
	}
	return m.client.Ping(ctx, nil)
}

// ============================================
// SNAPSHOTS
// ============================================

func (m *MongoDBService) GetPreviousSnapshot(ctx context.Context) (*models.NetworkSnapshot, error) {
	if !m.Enabled() {
		return nil, nil
	}

	var snapshot models.NetworkSnapshot
	err := m.db.Collection(CollectionNetworkSnapshots).FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.M{"timestamp": -1})).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}
	return &snapshot, nil
}

// SaveSnapshot stores the cycle's snapshot and drops those past retention.
func (m *MongoDBService) SaveSnapshot(ctx context.Context, snapshot *models.NetworkSnapshot) error {
	if !m.Enabled() {
		return nil
	}

	coll := m.db.Collection(CollectionNetworkSnapshots)
	if _, err := coll.InsertOne(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	cutoff := snapshot.Timestamp.Add(-snapshotRetention)
	if _, err := coll.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}}); err != nil {
		log.Warnf("⚠️  Failed to prune old snapshots: %v", err)
	}
	return nil
}

func (m *MongoDBService) GetPreviousNodeRecords(ctx context.Context) ([]models.NodeRecord, error) {
	if !m.Enabled() {
		return nil, nil
	}

	cursor, err := m.db.Collection(CollectionNodeRecords).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query node records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.NodeRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode node records: %w", err)
	}
	return records, nil
}

// SaveNodeRecords replaces the stored record set with records.
func (m *MongoDBService) SaveNodeRecords(ctx context.Context, records []models.NodeRecord) error {
	if !m.Enabled() {
		return nil
	}

	coll := m.db.Collection(CollectionNodeRecords)
	ids := make([]string, 0, len(records))

	if len(records) > 0 {
		writes := make([]mongo.WriteModel, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.NodeID)
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"node_id": rec.NodeID}).
				SetReplacement(rec).
				SetUpsert(true))
		}
		if _, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("failed to upsert node records: %w", err)
		}
	}

	if _, err := coll.DeleteMany(ctx, bson.M{"node_id": bson.M{"$nin": ids}}); err != nil {
		return fmt.Errorf("failed to remove departed node records: %w", err)
	}
	return nil
}

// ============================================
// ACTIVITY FEED
// ============================================

func (m *MongoDBService) AppendActivity(ctx context.Context, events []models.ActivityEvent) error {
	if !m.Enabled() || len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(events))
	for _, ev := range events {
		docs = append(docs, ev)
	}
	if _, err := m.db.Collection(CollectionActivityEvents).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert activity events: %w", err)
	}
	return nil
}

func (m *MongoDBService) RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	if !m.Enabled() {
		return []models.ActivityEvent{}, nil
	}
	if limit <= 0 || limit > maxActivityEvents {
		limit = maxActivityEvents
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.db.Collection(CollectionActivityEvents).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer cursor.Close(ctx)

	events := []models.ActivityEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	return events, nil
}

// ============================================
// SUBSCRIPTIONS
// ============================================

func (m *MongoDBService) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if !m.Enabled() {
		return fmt.Errorf("MongoDB not enabled")
	}
	_, err := m.db.Collection(CollectionSubscriptions).InsertOne(ctx, sub)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	return err
}

func (m *MongoDBService) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	if !m.Enabled() {
		return nil, ErrSubscriptionNotFound
	}

	var sub models.Subscription
	err := m.db.Collection(CollectionSubscriptions).FindOne(ctx, bson.M{"id": id}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (m *MongoDBService) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	if !m.Enabled() {
		return ErrSubscriptionNotFound
	}

	res, err := m.db.Collection(CollectionSubscriptions).ReplaceOne(ctx, bson.M{"id": sub.ID}, sub)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (m *MongoDBService) DeleteSubscription(ctx context.Context, id string) error {
	if !m.Enabled() {
		return ErrSubscriptionNotFound
	}

	res, err := m.db.Collection(CollectionSubscriptions).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (m *MongoDBService) ListSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	return m.findSubscriptions(ctx, bson.M{})
}

func (m *MongoDBService) ListSubscriptionsForNode(ctx context.Context, nodeID string) ([]*models.Subscription, error) {
	// node_ids is an array; equality matches any element
	return m.findSubscriptions(ctx, bson.M{"node_ids": nodeID})
}

func (m *MongoDBService) findSubscriptions(ctx context.Context, filter bson.M) ([]*models.Subscription, error) {
	if !m.Enabled() {
		return []*models.Subscription{}, nil
	}

	cursor, err := m.db.Collection(CollectionSubscriptions).Find(ctx, filter, options.Find().SetSort(bson.M{"id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	subs := []*models.Subscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// ============================================
// ALERT FEED
// ============================================

func (m *MongoDBService) AppendAlert(ctx context.Context, row *models.AlertRow) error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.db.Collection(CollectionAlertFeed).InsertOne(ctx, row)
	return err
}

func (m *MongoDBService) ListAlerts(ctx context.Context, subscriptionID string, unreadOnly bool, limit int) ([]*models.AlertRow, error) {
	if !m.Enabled() {
		return []*models.AlertRow{}, nil
	}

	filter := bson.M{}
	if subscriptionID != "" {
		filter["subscription_id"] = subscriptionID
	}
	if unreadOnly {
		filter["read"] = false
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.db.Collection(CollectionAlertFeed).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []*models.AlertRow{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *MongoDBService) MarkAlertRead(ctx context.Context, id string) error {
	if !m.Enabled() {
		return ErrAlertNotFound
	}

	res, err := m.db.Collection(CollectionAlertFeed).UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// GetDatabaseStats returns document counts per collection.
func (m *MongoDBService) GetDatabaseStats(ctx context.Context) (map[string]interface{}, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("MongoDB not enabled")
	}

	stats := make(map[string]interface{})
	for _, name := range []string{
		CollectionNetworkSnapshots,
		CollectionNodeRecords,
		CollectionActivityEvents,
		CollectionSubscriptions,
		CollectionAlertFeed,
	} {
		count, err := m.db.Collection(name).CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		stats[name+"_count"] = count
	}

	if latest, err := m.GetPreviousSnapshot(ctx); err == nil && latest != nil {
		stats["latest_snapshot"] = latest.Timestamp
	}
	return stats, nil
}
