package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EntryType string

const (
	EntryIn  EntryType = "IN"
	EntryOut EntryType = "OUT"
)

const (
	ReasonRestock      = "restock"
	ReasonOrder        = "order"
	ReasonCancellation = "cancellation"
	ReasonWriteOff     = "writeoff"
)

// StockEntry is one line of the append-only stock journal.
type StockEntry struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ProductID    primitive.ObjectID `bson:"product_id" json:"productId"`
	Type         EntryType          `bson:"type" json:"type"`
	Quantity     int                `bson:"quantity" json:"quantity"`
	StockBefore  int                `bson:"stock_before" json:"stockBefore"`
	StockAfter   int                `bson:"stock_after" json:"stockAfter"`
	BatchID      string             `bson:"batch_id,omitempty" json:"batchId,omitempty"`
	ExpiryDate   *time.Time         `bson:"expiry_date,omitempty" json:"expiryDate,omitempty"`
	Date         time.Time          `bson:"date" json:"date"`
	Reason       string             `bson:"reason" json:"reason"`
	ReferenceID  string             `bson:"reference_id,omitempty" json:"referenceId,omitempty"`
	CustomerName string             `bson:"customer_name,omitempty" json:"customerName,omitempty"`
	Note         string             `bson:"note,omitempty" json:"note,omitempty"`
	ActorID      string             `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	OwnerID      string             `bson:"owner_id,omitempty" json:"ownerId,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

type RestockInput struct {
	QuantityAdded int        `json:"quantityAdded" binding:"required"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	RestockDate   *time.Time `json:"restockDate,omitempty"`
}

type WriteOffInput struct {
	Quantity int    `json:"quantity" binding:"required"`
	Note     string `json:"note"`
}
