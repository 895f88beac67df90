package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"stock_api_backend/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	MongoDBName               = "stock_data"
	MongoDailyCacheCollection = "daily_cache"
)

// MongoDBClient handles MongoDB Atlas connection and the durable tier of
// the daily cache. Documents are keyed by their dated cache key.
type MongoDBClient struct {
	client      *mongo.Client
	database    *mongo.Database
	mu          sync.RWMutex
	isConnected bool
	uriSet      bool   // Whether MONGODB_URI is configured
	lastError   string // Last connection error message
}

// MongoCacheDocument represents one dataset snapshot in MongoDB
type MongoCacheDocument struct {
	ID        string    `bson:"_id"` // {dataset}-{YYYY-MM-DD}
	UpdatedAt time.Time `bson:"updated_at"`
	Payload   string    `bson:"payload"` // JSON-encoded dataset
}

// Global MongoDB client instance
var GlobalMongoClient *MongoDBClient

// InitMongoDBClient initializes the MongoDB client
func InitMongoDBClient() error {
	mongoURI := config.AppConfig.MongoDBURI
	if mongoURI == "" {
		log.Println("MONGODB_URI not set, durable cache tier disabled")
		GlobalMongoClient = &MongoDBClient{
			uriSet:    false,
			lastError: "MONGODB_URI environment variable not set",
		}
		return nil
	}

	// Initialize with URI set flag
	GlobalMongoClient = &MongoDBClient{
		uriSet: true,
	}

	return GlobalMongoClient.Connect()
}

// Connect establishes connection to MongoDB Atlas
func (m *MongoDBClient) Connect() error {
	mongoURI := config.AppConfig.MongoDBURI
	if mongoURI == "" {
		m.lastError = "MONGODB_URI environment variable not set"
		return fmt.Errorf("%s", m.lastError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Configure client options with retry
	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		m.lastError = fmt.Sprintf("Failed to connect: %v", err)
		log.Printf("Failed to connect to MongoDB Atlas: %v", err)
		return err
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		m.lastError = fmt.Sprintf("Failed to ping: %v", err)
		log.Printf("Failed to ping MongoDB Atlas: %v", err)
		// Disconnect on ping failure
		client.Disconnect(ctx)
		return err
	}

	m.mu.Lock()
	m.client = client
	m.database = client.Database(MongoDBName)
	m.isConnected = true
	m.lastError = ""
	m.mu.Unlock()

	// Create indexes
	m.createIndexes()

	log.Println("MongoDB Atlas connected successfully")
	return nil
}

// Reconnect attempts to reconnect to MongoDB Atlas
func (m *MongoDBClient) Reconnect() error {
	m.mu.Lock()
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.client.Disconnect(ctx)
		cancel()
	}
	m.isConnected = false
	m.mu.Unlock()

	return m.Connect()
}

// IsConfigured returns whether MongoDB is configured and connected
func (m *MongoDBClient) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isConnected
}

// IsURISet returns whether MONGODB_URI environment variable is set
func (m *MongoDBClient) IsURISet() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uriSet
}

// GetLastError returns the last connection error
func (m *MongoDBClient) GetLastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// GetConnectionStatus returns detailed connection status
func (m *MongoDBClient) GetConnectionStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := map[string]interface{}{
		"uri_set":   m.uriSet,
		"connected": m.isConnected,
	}

	if m.lastError != "" {
		status["error"] = m.lastError
	}

	return status
}

// Close closes the MongoDB connection
func (m *MongoDBClient) Close() error {
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return m.client.Disconnect(ctx)
	}
	return nil
}

// createIndexes creates necessary indexes for collections
func (m *MongoDBClient) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Daily cache collection - index on updated_at for housekeeping queries
	cacheCollection := m.database.Collection(MongoDailyCacheCollection)
	cacheCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})

	log.Println("MongoDB indexes created")
}

// ==================== Daily Cache Operations ====================

// WriteObject upserts one dataset snapshot under its dated key.
func (m *MongoDBClient) WriteObject(ctx context.Context, key string, payload json.RawMessage) error {
	if !m.IsConfigured() {
		return fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	doc := MongoCacheDocument{
		ID:        key,
		UpdatedAt: time.Now(),
		Payload:   string(payload),
	}

	collection := m.database.Collection(MongoDailyCacheCollection)
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to save cache document %s to MongoDB: %w", key, err)
	}

	log.Printf("Saved cache document %s to MongoDB Atlas (%d bytes)", key, len(payload))
	return nil
}

// ReadObject loads one dataset snapshot by its dated key. A missing key is
// ErrObjectNotFound, not a storage failure.
func (m *MongoDBClient) ReadObject(ctx context.Context, key string) (json.RawMessage, error) {
	if !m.IsConfigured() {
		return nil, fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoDailyCacheCollection)

	var doc MongoCacheDocument
	err := collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to load cache document %s from MongoDB: %w", key, err)
	}

	return json.RawMessage(doc.Payload), nil
}

// GetCacheDocumentCount returns the count of cached dataset snapshots
func (m *MongoDBClient) GetCacheDocumentCount() (int64, error) {
	if !m.IsConfigured() {
		return 0, fmt.Errorf("MongoDB not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection := m.database.Collection(MongoDailyCacheCollection)
	return collection.CountDocuments(ctx, bson.M{})
}
