// Path: internal/vault/mongo.go
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const artifactCollection = "vault_artifacts"

// artifactDoc is one stored artifact, keyed by its vault path.
type artifactDoc struct {
	ID          string    `bson:"_id"`
	ContentType string    `bson:"content_type"`
	Data        []byte    `bson:"data"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// MongoVault stores artifacts as documents in a MongoDB collection. It is
// the self-hosted alternative to the GCS provider.
type MongoVault struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoVault connects to the configured MongoDB deployment.
func NewMongoVault(ctx context.Context, cfg config.VaultConfig) (*MongoVault, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI required for mongo vault")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	return &MongoVault{
		client:     client,
		collection: db.Collection(artifactCollection),
	}, nil
}

// Close disconnects the underlying client.
func (v *MongoVault) Close(ctx context.Context) error {
	return v.client.Disconnect(ctx)
}

// AppendMetrics implements Vault.
func (v *MongoVault) AppendMetrics(ctx context.Context, rows []MetricRow, date string) error {
	return appendMetrics(ctx, v, rows, date)
}

// StoreJSON implements Vault.
func (v *MongoVault) StoreJSON(ctx context.Context, path string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", path, err)
	}
	_, err = v.StoreBinary(ctx, path, payload, "application/json")
	return err
}

// FetchJSON implements Vault.
func (v *MongoVault) FetchJSON(ctx context.Context, path string, out any) error {
	data, err := v.FetchBinary(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal artifact %s: %w", path, err)
	}
	return nil
}

// List implements Vault.
func (v *MongoVault) List(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := v.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	var paths []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode artifact id: %w", err)
		}
		paths = append(paths, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return paths, nil
}

// StoreBinary implements Vault.
func (v *MongoVault) StoreBinary(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	doc := artifactDoc{
		ID:          path,
		ContentType: contentType,
		Data:        data,
		UpdatedAt:   time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": path}
	if _, err := v.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return "", fmt.Errorf("store artifact %s: %w", path, err)
	}
	return fmt.Sprintf("mongodb://%s/%s", v.collection.Database().Name(), path), nil
}

// FetchBinary implements Vault.
func (v *MongoVault) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	var doc artifactDoc
	err := v.collection.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch artifact %s: %w", path, err)
	}
	return doc.Data, nil
}
