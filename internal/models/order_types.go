package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fulfillment statuses for an order. Payment status is a separate axis
// ('pending' -> 'confirmed') and is not part of this enum.
const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is one of the fulfillment statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is the model for the 'orders' table.
// OrderID is the human-readable composite identifier
// (storeID-productID-uuid); ID is the row key.
type Order struct {
	ID              string          `json:"id" db:"id"`
	OrderID         string          `json:"orderId" db:"order_id"`
	StoreID         string          `json:"storeId" db:"store_id"`
	ProductID       string          `json:"productId" db:"product_id"`
	UserID          *string         `json:"userId,omitempty" db:"user_id"`
	BuyerAddress    string          `json:"buyerAddress" db:"buyer_address"`
	SellerAddress   string          `json:"sellerAddress" db:"seller_address"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Status          string          `json:"status" db:"status"`
	PaymentStatus   string          `json:"paymentStatus" db:"payment_status"`
	TransactionHash *string         `json:"transactionHash,omitempty" db:"transaction_hash"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}
