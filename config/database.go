package config

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Database holds the client and the collection handles of the back office.
type Database struct {
	Client *mongo.Client

	StockCollection        *mongo.Collection
	StockEntryCollection   *mongo.Collection
	CustomerCollection     *mongo.Collection
	OrderCollection        *mongo.Collection
	RequestOrderCollection *mongo.Collection
	InvoiceCollection      *mongo.Collection
	SaleCollection         *mongo.Collection
	CounterCollection      *mongo.Collection
	AuditCollection        *mongo.Collection
	ActivityCollection     *mongo.Collection
	UserCollection         *mongo.Collection
	SessionCollection      *mongo.Collection
}

func ConnectDatabase(ctx context.Context, cfg *Config, logger *zap.Logger) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	logger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	return &Database{
		Client:                 client,
		StockCollection:        db.Collection("stocks"),
		StockEntryCollection:   db.Collection("stock_entries"),
		CustomerCollection:     db.Collection("customers"),
		OrderCollection:        db.Collection("orders"),
		RequestOrderCollection: db.Collection("request_orders"),
		InvoiceCollection:      db.Collection("invoices"),
		SaleCollection:         db.Collection("sales"),
		CounterCollection:      db.Collection("counters"),
		AuditCollection:        db.Collection("audit_trail"),
		ActivityCollection:     db.Collection("activity_logs"),
		UserCollection:         db.Collection("users"),
		SessionCollection:      db.Collection("sessions"),
	}, nil
}

func (d *Database) Disconnect(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness and lookups.
func (d *Database) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := map[*mongo.Collection][]mongo.IndexModel{
		d.StockCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}},
		},
		d.StockEntryCollection: {
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "reference_id", Value: 1}}},
		},
		d.CustomerCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}}},
		},
		d.OrderCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "payment_status", Value: 1}}},
		},
		d.RequestOrderCollection: {
			{Keys: bson.D{{Key: "view_token", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiry", Value: 1}}},
		},
		d.InvoiceCollection: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "invoice_number", Value: 1}}, Options: unique},
		},
		d.SaleCollection: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		d.AuditCollection: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		d.ActivityCollection: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		d.UserCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		},
		d.SessionCollection: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, idx := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}
