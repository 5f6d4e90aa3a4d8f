package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a stock item. Quantity is only ever changed through the stock ledger.
type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string             `bson:"name" json:"name"`
	Category        string             `bson:"category" json:"category"`
	SubCategory     string             `bson:"sub_category,omitempty" json:"subCategory,omitempty"`
	Packaging       string             `bson:"packaging,omitempty" json:"packaging,omitempty"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	InitialQuantity int                `bson:"initial_quantity" json:"initialQuantity"`
	CriticalStock   int                `bson:"critical_stock" json:"criticalStock"`
	PricePerBox     float64            `bson:"price_per_box" json:"pricePerBox"`
	PricePerTest    float64            `bson:"price_per_test" json:"pricePerTest"`
	PricePerPiece   float64            `bson:"price_per_piece" json:"pricePerPiece"`
	ExpiryDate      *time.Time         `bson:"expiry_date,omitempty" json:"expiryDate,omitempty"`
	ImageURL        string             `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// PriceFor returns the catalog price for a selling unit. Unknown units fall back to the piece price.
func (p Product) PriceFor(unit string) float64 {
	switch unit {
	case UnitBox:
		return p.PricePerBox
	case UnitTest:
		return p.PricePerTest
	default:
		return p.PricePerPiece
	}
}

const (
	UnitPiece = "piece"
	UnitBox   = "box"
	UnitTest  = "test"
)

// UpdateProduct carries the catalog fields an operator may change. Nil fields are left untouched.
type UpdateProduct struct {
	Name          *string    `json:"name,omitempty"`
	Category      *string    `json:"category,omitempty"`
	SubCategory   *string    `json:"subCategory,omitempty"`
	Packaging     *string    `json:"packaging,omitempty"`
	CriticalStock *int       `json:"criticalStock,omitempty"`
	PricePerBox   *float64   `json:"pricePerBox,omitempty"`
	PricePerTest  *float64   `json:"pricePerTest,omitempty"`
	PricePerPiece *float64   `json:"pricePerPiece,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	ImageURL      *string    `json:"imageUrl,omitempty"`
}

type ProductFilter struct {
	Category string
	Search   string
	SortBy   string // name, quantity, expiry
}

type StockLevel string

const (
	StockIn       StockLevel = "in_stock"
	StockLow      StockLevel = "low_stock"
	StockOut      StockLevel = "out_of_stock"
	ExpiryOK      StockLevel = "ok"
	ExpiryNear    StockLevel = "nearly_expiring"
	ExpiryPassed  StockLevel = "expired"
	ExpiryUnknown StockLevel = "no_expiry"
)

// StockClassification is the read-side view of a product's stock and expiry state.
type StockClassification struct {
	Level  StockLevel `json:"level"`
	Expiry StockLevel `json:"expiry"`
}

type StockSummary struct {
	TotalProducts  int       `json:"totalProducts"`
	LowStock       []Product `json:"lowStock"`
	OutOfStock     []Product `json:"outOfStock"`
	NearlyExpiring []Product `json:"nearlyExpiring"`
	Expired        []Product `json:"expired"`
	StockValue     float64   `json:"stockValue"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

type Reconciliation struct {
	ProductID       primitive.ObjectID `json:"productId"`
	Quantity        int                `json:"quantity"`
	InitialQuantity int                `json:"initialQuantity"`
	TotalIn         int                `json:"totalIn"`
	TotalOut        int                `json:"totalOut"`
	Expected        int                `json:"expected"`
	Consistent      bool               `json:"consistent"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Products int    `json:"products"`
}
