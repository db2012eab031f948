package models

import "github.com/shopspring/decimal"

// Product is the model for the 'products' table.
// Price is an exact decimal (DECIMAL column); float64 would drift on
// cart totals, and totals are compared against on-chain amounts.
type Product struct {
	ID          string          `json:"id" db:"id"`
	StoreID     string          `json:"storeId" db:"store_id"`
	ProductName string          `json:"productName" db:"product_name"`
	ImageCID    *string         `json:"imageCid,omitempty" db:"image_cid"`
	Description *string         `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
}
