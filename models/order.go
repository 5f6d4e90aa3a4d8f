package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus drives fulfilment of an Order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentUnpaid    PaymentStatus = "Unpaid"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentCancelled PaymentStatus = "Cancelled"
)

// ConfirmationStatus belongs to public request orders only.
type ConfirmationStatus string

const (
	ConfirmationPending     ConfirmationStatus = "pending"
	ConfirmationConfirmed   ConfirmationStatus = "confirmed"
	ConfirmationUnconfirmed ConfirmationStatus = "unconfirmed"
)

// BuyerInfo is copied onto each order, it is not a reference to a Customer.
type BuyerInfo struct {
	CustomerID string `bson:"customer_id,omitempty" json:"customerId,omitempty"`
	Name       string `bson:"name" json:"name"`
	Address    string `bson:"address,omitempty" json:"address,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	Contact    string `bson:"contact,omitempty" json:"contact,omitempty"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
}

type OrderLine struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Unit      string             `bson:"unit" json:"unit"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     float64            `bson:"price" json:"price"`
}

type Order struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID        string             `bson:"owner_id" json:"ownerId"`
	BuyerInfo      BuyerInfo          `bson:"buyer_info" json:"buyerInfo"`
	Lines          []OrderLine        `bson:"lines" json:"lines"`
	TotalAmount    float64            `bson:"total_amount" json:"totalAmount"`
	PaymentStatus  PaymentStatus      `bson:"payment_status" json:"paymentStatus"`
	StockDeducted  bool               `bson:"stock_deducted" json:"stockDeducted"`
	RequestOrderID string             `bson:"request_order_id,omitempty" json:"requestOrderId,omitempty"`
	CreatedBy      string             `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
	PaidAt         *time.Time         `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	CancelledAt    *time.Time         `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
}

// RequestOrder is submitted through a shareable public link and must be confirmed before expiry.
type RequestOrder struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID     string             `bson:"owner_id" json:"ownerId"`
	BuyerInfo   BuyerInfo          `bson:"buyer_info" json:"buyerInfo"`
	Lines       []OrderLine        `bson:"lines" json:"lines"`
	TotalAmount float64            `bson:"total_amount" json:"totalAmount"`
	Status      ConfirmationStatus `bson:"status" json:"status"`
	ViewToken   string             `bson:"view_token" json:"viewToken"`
	Expiry      time.Time          `bson:"expiry" json:"expiry"`
	OrderID     string             `bson:"order_id,omitempty" json:"orderId,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// LineInput is one requested cart line. A nil Price means the catalog price for Unit.
type LineInput struct {
	ProductID string   `json:"productId" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required"`
	Unit      string   `json:"unit"`
	Price     *float64 `json:"price,omitempty"`
}

type CreateOrderInput struct {
	BuyerInfo     BuyerInfo     `json:"buyerInfo"`
	Lines         []LineInput   `json:"lines"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

type OrderFilter struct {
	OwnerID string
	Status  PaymentStatus
	From    *time.Time
	To      *time.Time
}

type RequestOrderFilter struct {
	OwnerID string
	Status  ConfirmationStatus
}

// OrderStatusChange is applied together with a compare-and-set status write.
type OrderStatusChange struct {
	To            PaymentStatus
	StockDeducted *bool
	PaidAt        *time.Time
	CancelledAt   *time.Time
	At            time.Time
}
