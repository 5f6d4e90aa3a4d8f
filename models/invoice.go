package models

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Invoice struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID       string             `bson:"owner_id" json:"ownerId"`
	OrderID       primitive.ObjectID `bson:"order_id" json:"orderId"`
	InvoiceNumber string             `bson:"invoice_number" json:"invoiceNumber"`
	BuyerInfo     BuyerInfo          `bson:"buyer_info" json:"buyerInfo"`
	Lines         []OrderLine        `bson:"lines" json:"lines"`
	TotalAmount   float64            `bson:"total_amount" json:"totalAmount"`
	PaymentStatus PaymentStatus      `bson:"payment_status" json:"paymentStatus"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// FormatInvoiceNumber renders a sequence value padded to six digits. Larger values keep all their
// digits, so numbers must be compared numerically, never as strings.
func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("%06d", n)
}

func ParseInvoiceNumber(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Sale is the reporting snapshot written when an order becomes Paid.
type Sale struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID         string             `bson:"owner_id" json:"ownerId"`
	OrderID         primitive.ObjectID `bson:"order_id" json:"orderId"`
	TotalAmount     float64            `bson:"total_amount" json:"totalAmount"`
	Date            time.Time          `bson:"date" json:"date"`
	Lines           []OrderLine        `bson:"lines" json:"lines"`
	CustomerName    string             `bson:"customer_name" json:"customerName"`
	CustomerContact string             `bson:"customer_contact,omitempty" json:"customerContact,omitempty"`
	Voided          bool               `bson:"voided" json:"voided"`
	VoidedAt        *time.Time         `bson:"voided_at,omitempty" json:"voidedAt,omitempty"`
}

type SaleFilter struct {
	OwnerID       string
	From          *time.Time
	To            *time.Time
	IncludeVoided bool
}

type DailySales struct {
	Day    string  `json:"day"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type ProductSales struct {
	ProductID primitive.ObjectID `json:"productId"`
	Name      string             `json:"name"`
	Quantity  int                `json:"quantity"`
	Revenue   float64            `json:"revenue"`
}

type SalesReport struct {
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Count     int            `json:"count"`
	Revenue   float64        `json:"revenue"`
	ByDay     []DailySales   `json:"byDay"`
	ByProduct []ProductSales `json:"byProduct"`
}

type Dashboard struct {
	Stock          StockSummary          `json:"stock"`
	Last30Days     SalesReport           `json:"last30Days"`
	OrdersByStatus map[PaymentStatus]int `json:"ordersByStatus"`
	PendingRequest int                   `json:"pendingRequests"`
}
