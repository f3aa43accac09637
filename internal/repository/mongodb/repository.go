package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

const summaryCollection = "reconcile_summaries"

// Repository defines the interface for reconciliation summary storage.
type Repository interface {
	SaveReconcileSummary(ctx context.Context, summary models.ReconcileSummary) error
	LatestReconcileSummary(ctx context.Context) (models.ReconcileSummary, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository connects and pings before returning.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return NewFromClient(client, dbName), nil
}

// NewFromClient wraps an already connected client.
func NewFromClient(client *mongo.Client, dbName string) *MongoDBRepository {
	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: summaryCollection,
	}
}

// SaveReconcileSummary upserts the summary for its date, so a re-run on the
// same day replaces the earlier snapshot.
func (r *MongoDBRepository) SaveReconcileSummary(ctx context.Context, summary models.ReconcileSummary) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	_, err := collection.ReplaceOne(ctx,
		bson.M{"date": summary.Date},
		summary,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert reconcile summary: %w", err)
	}
	return nil
}

// LatestReconcileSummary returns the most recent stored snapshot.
func (r *MongoDBRepository) LatestReconcileSummary(ctx context.Context) (models.ReconcileSummary, error) {
	collection := r.client.Database(r.dbName).Collection(r.collName)

	var summary models.ReconcileSummary
	err := collection.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})).Decode(&summary)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ReconcileSummary{}, fmt.Errorf("%w: no reconcile summary stored", models.ErrNotFound)
	}
	if err != nil {
		return models.ReconcileSummary{}, fmt.Errorf("failed to load reconcile summary: %w", err)
	}
	return summary, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
