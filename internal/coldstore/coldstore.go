// Package coldstore is the append-only order-log sink: one immutable
// document per archived order, upserted by order_id so a re-run of the
// archive pipeline after a partial failure is a no-op insert rather than a
// duplicate.
package coldstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ahmadsadek12/convoyd/internal/config"
)

// ErrNotFound is returned when a lookup by order_id finds no document.
var ErrNotFound = errors.New("order log not found")

// Store wraps the order_logs collection.
type Store struct {
	collection *mongo.Collection
}

// Open connects to Mongo and returns a Store bound to the configured
// database/collection.
func Open(ctx context.Context, cfg config.ColdStoreConfig) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	if _, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("ensure order_id index: %w", err)
	}

	return &Store{collection: collection}, nil
}

// OrderLogItem is one archived order line, carrying its price/cost snapshot
// and, for services, its booking fields.
type OrderLogItem struct {
	ItemID          string  `bson:"item_id"`
	Name            string  `bson:"name_at_time"`
	Quantity        int     `bson:"quantity"`
	PriceAtTime     float64 `bson:"price_at_time"`
	CostAtTime      float64 `bson:"cost_at_time,omitempty"`
	Notes           string  `bson:"notes,omitempty"`
	DurationMinutes int     `bson:"duration_minutes,omitempty"`
}

// StatusEvent is one entry of the archived status timeline.
type StatusEvent struct {
	Status    string    `bson:"status"`
	ChangedBy string    `bson:"changed_by"`
	ChangedAt time.Time `bson:"changed_at"`
}

// OrderLog is the immutable archived-order document.
type OrderLog struct {
	OrderID         string         `bson:"order_id"`
	BusinessID      string         `bson:"business_id"`
	UserID          string         `bson:"user_id"`
	CustomerPhone   string         `bson:"customer_phone_number"`
	CustomerName    string         `bson:"customer_name,omitempty"`
	DeliveryType    string         `bson:"delivery_type,omitempty"`
	LocationAddress string         `bson:"location_address,omitempty"`
	Items           []OrderLogItem `bson:"items"`
	Subtotal        float64        `bson:"subtotal"`
	DeliveryPrice   float64        `bson:"delivery_price"`
	Total           float64        `bson:"total"`
	PaymentMethod   string         `bson:"payment_method,omitempty"`
	PaymentStatus   string         `bson:"payment_status,omitempty"`
	LanguageUsed    string         `bson:"language_used,omitempty"`
	OrderSource     string         `bson:"order_source"`
	ScheduledFor    *time.Time     `bson:"scheduled_for,omitempty"`
	StatusTimeline  []StatusEvent  `bson:"status_timeline"`
	FinalStatus     string         `bson:"final_status"`
	CompletedAt     *time.Time     `bson:"completed_at,omitempty"`
	CancelledAt     *time.Time     `bson:"cancelled_at,omitempty"`
	ArchivedAt      time.Time      `bson:"archived_at"`
}

// Upsert inserts or replaces the order log keyed by order_id, giving the
// archive pipeline its at-least-once, idempotent write.
func (s *Store) Upsert(ctx context.Context, log OrderLog) error {
	filter := bson.M{"order_id": log.OrderID}
	_, err := s.collection.ReplaceOne(ctx, filter, log, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert order log %s: %w", log.OrderID, err)
	}
	return nil
}

// Get reads the archived order log by order_id.
func (s *Store) Get(ctx context.Context, orderID string) (*OrderLog, error) {
	var log OrderLog
	err := s.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order log %s: %w", orderID, err)
	}
	return &log, nil
}
