package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

const mongoBatchSize = 1000

// MongoDBStorage mirrors final tables into MongoDB collections
type MongoDBStorage struct {
	client   *mongo.Client
	database *mongo.Database
	prefix   string
	timeout  time.Duration
}

// NewMongoDBStorage connects to MongoDB and verifies the connection
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDBStorage{
		client:   client,
		database: client.Database(cfg.MongoDBDatabase),
		prefix:   cfg.TablePrefix,
		timeout:  cfg.Timeout,
	}, nil
}

// StoreTable replaces the dataset's collection with one document per row
func (m *MongoDBStorage) StoreTable(ctx context.Context, ds models.Dataset, t *table.Table) error {
	coll := m.database.Collection(m.prefix + ds.Name)
	dropCtx, cancel := withTimeout(ctx, m.timeout)
	err := coll.Drop(dropCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", coll.Name(), err)
	}

	docs := make([]interface{}, 0, mongoBatchSize)
	flush := func() error {
		if len(docs) == 0 {
			return nil
		}
		insertCtx, cancel := withTimeout(ctx, m.timeout)
		defer cancel()
		if _, err := coll.InsertMany(insertCtx, docs); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", coll.Name(), err)
		}
		docs = docs[:0]
		return nil
	}

	for r, row := range t.Rows {
		docs = append(docs, rowDocument(r, t.Headers, row))
		if len(docs) == mongoBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func rowDocument(index int, headers, row []string) bson.D {
	doc := make(bson.D, 0, len(headers)+1)
	doc = append(doc, bson.E{Key: "row_index", Value: index})
	for i, h := range headers {
		doc = append(doc, bson.E{Key: h, Value: row[i]})
	}
	return doc
}

func (m *MongoDBStorage) statusCollection() *mongo.Collection {
	return m.database.Collection(m.prefix + "run_status")
}

// UpdateRunStatus upserts the run's status document
func (m *MongoDBStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.statusCollection().ReplaceOne(ctx,
		bson.M{"run_id": status.RunID},
		status,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// GetRunStatus returns the most recently started run
func (m *MongoDBStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})

	var status models.RunStatus
	err := m.statusCollection().FindOne(ctx, bson.M{}, opts).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.RunStatus{Status: models.RunStatusNever}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run status: %w", err)
	}
	return &status, nil
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	ctx, cancel := withTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
