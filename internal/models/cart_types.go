package models

// Cart defines the struct for the 'carts' table.
// A user owns at most one cart; the row survives checkout, its items do not.
type Cart struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"userId" db:"user_id"`
}

// CartItem defines the struct for the 'cart_items' table.
// (cart_id, product_id) is unique; adding the same product again
// increments the quantity instead of inserting a second row.
type CartItem struct {
	ID        string `json:"id" db:"id"`
	CartID    string `json:"cartId" db:"cart_id"`
	ProductID string `json:"productId" db:"product_id"`
	Quantity  int    `json:"quantity" db:"quantity"`
}
