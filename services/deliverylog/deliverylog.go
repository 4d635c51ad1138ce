package deliverylog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	DatabaseName       = "price_alerts"
	ReceiptsCollection = "delivery_receipts"
)

// Receipt documents one notification delivery attempt
type Receipt struct {
	ID        string    `bson:"_id" json:"receipt_id"`
	AlertID   uint      `bson:"alert_id" json:"alert_id"`
	Symbol    string    `bson:"symbol" json:"symbol"`
	Recipient string    `bson:"recipient" json:"recipient"`
	Subject   string    `bson:"subject" json:"subject"`
	Status    string    `bson:"status" json:"status"`
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
	SentAt    time.Time `bson:"sent_at" json:"sent_at"`
}

// Archive keeps delivery receipts in MongoDB. The archive is optional: when
// no URI is configured or the connection fails, the service runs with the
// archive disabled.
type Archive struct {
	client    *mongo.Client
	receipts  *mongo.Collection
	mu        sync.RWMutex
	connected bool
	lastError string
}

// NewArchive connects to MongoDB when a URI is configured
func NewArchive(uri string) *Archive {
	if uri == "" {
		log.Println("MONGODB_URI not set, delivery archive disabled")
		return &Archive{lastError: "MONGODB_URI environment variable not set"}
	}

	archive := &Archive{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		archive.lastError = fmt.Sprintf("failed to connect: %v", err)
		log.Printf("Failed to connect to MongoDB, delivery archive disabled: %v", err)
		return archive
	}

	if err := client.Ping(ctx, nil); err != nil {
		archive.lastError = fmt.Sprintf("failed to ping: %v", err)
		log.Printf("Failed to ping MongoDB, delivery archive disabled: %v", err)
		client.Disconnect(ctx)
		return archive
	}

	archive.client = client
	archive.receipts = client.Database(DatabaseName).Collection(ReceiptsCollection)
	archive.connected = true
	log.Println("Delivery archive connected to MongoDB")
	return archive
}

// Enabled reports whether the archive is connected
func (a *Archive) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// Status describes the archive state for health reporting
func (a *Archive) Status() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.connected {
		return "connected"
	}
	return fmt.Sprintf("disabled: %s", a.lastError)
}

// Record stores a delivery receipt. Disabled archives drop receipts silently
// so delivery is never blocked on archival.
func (a *Archive) Record(ctx context.Context, receipt Receipt) error {
	if !a.Enabled() {
		return nil
	}

	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.SentAt.IsZero() {
		receipt.SentAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := a.receipts.InsertOne(ctx, receipt); err != nil {
		return fmt.Errorf("failed to record delivery receipt: %w", err)
	}
	return nil
}

// Recent returns the newest delivery receipts
func (a *Archive) Recent(ctx context.Context, limit int) ([]Receipt, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("delivery archive disabled")
	}

	if limit < 1 || limit > 500 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.receipts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery receipts: %w", err)
	}
	defer cursor.Close(ctx)

	var receipts []Receipt
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, fmt.Errorf("failed to decode delivery receipts: %w", err)
	}
	return receipts, nil
}

// Close disconnects from MongoDB
func (a *Archive) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	a.connected = false
	return a.client.Disconnect(ctx)
}
