package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jes-saas/marketplace-golang/internal/models"
)

//
// --- Order Ledger ---
//

// errMissingTimestamps marks an order row whose creation or update
// timestamp is absent. That is a data-integrity failure, never a
// missing-value case: the schema stamps both on insert.
var errMissingTimestamps = errors.New("order record missing timestamps")

// dbtx is the slice of database/sql shared by *sql.DB and *sql.Tx, so
// the ledger helpers run standalone or inside the checkout transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

const orderColumns = `id, order_id, store_id, product_id, user_id, buyer_address, seller_address,
		amount, status, payment_status, transaction_hash, created_at, updated_at`

// orderParams is everything needed to persist one order row.
// Fulfillment status always starts at 'pending'.
type orderParams struct {
	StoreID         string
	ProductID       string
	UserID          *string
	BuyerAddress    string
	SellerAddress   string
	Amount          decimal.Decimal
	PaymentStatus   string
	TransactionHash *string
}

// newOrderID builds the human-readable composite order identifier.
// Uniqueness comes from the fresh uuid suffix, not from the content.
func newOrderID(storeID, productID string) string {
	return fmt.Sprintf("%s-%s-%s", storeID, productID, uuid.New().String())
}

// createOrderRow inserts an order and reads it back, letting the
// database stamp the timestamps and verifying they actually arrived.
func createOrderRow(q dbtx, p orderParams) (*models.Order, error) {
	id := uuid.New().String()
	orderID := newOrderID(p.StoreID, p.ProductID)

	insert := `
		INSERT INTO orders (
			id, order_id, store_id, product_id, user_id, buyer_address, seller_address,
			amount, status, payment_status, transaction_hash
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)`
	_, err := q.Exec(insert, id, orderID, p.StoreID, p.ProductID, p.UserID,
		p.BuyerAddress, p.SellerAddress, p.Amount, p.PaymentStatus, p.TransactionHash)
	if err != nil {
		return nil, err
	}

	return scanOrder(q.QueryRow("SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(
		&o.ID, &o.OrderID, &o.StoreID, &o.ProductID, &o.UserID, &o.BuyerAddress, &o.SellerAddress,
		&o.Amount, &o.Status, &o.PaymentStatus, &o.TransactionHash, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !createdAt.Valid || !updatedAt.Valid {
		return nil, errMissingTimestamps
	}
	o.CreatedAt = createdAt.Time
	o.UpdatedAt = updatedAt.Time
	return &o, nil
}

// CreateOrderInput defines the JSON for a direct single-product order.
type CreateOrderInput struct {
	StoreID       string          `json:"store_id" binding:"required"`
	ProductID     string          `json:"product_id" binding:"required"`
	BuyerAddress  string          `json:"buyer_address" binding:"required"`
	SellerAddress string          `json:"seller_address" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
}

// CreateOrder is the handler for POST /create_orders: one order for one
// unit of one product, payment still pending. Checkout does not go
// through here; it settles whole carts with payment already confirmed.
func (h *Handlers) CreateOrder(c *gin.Context) {
	wallet, role := callerIdentity(c)
	if role != "user" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only users can create orders"})
		return
	}

	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if wallet != input.BuyerAddress {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid buyer address"})
		return
	}

	user, err := h.getUserByWallet(wallet)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
		return
	}
	defer tx.Rollback()

	order, err := createOrderRow(tx, orderParams{
		StoreID:       input.StoreID,
		ProductID:     input.ProductID,
		UserID:        &user.ID,
		BuyerAddress:  input.BuyerAddress,
		SellerAddress: input.SellerAddress,
		Amount:        input.Amount,
		PaymentStatus: "pending",
	})
	if err != nil {
		if errors.Is(err, errMissingTimestamps) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Order record missing timestamps"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	// One unit reserved; decrement is conditional so stock never goes
	// negative, and a miss aborts the whole order.
	res, err := tx.Exec("UPDATE products SET quantity = quantity - 1 WHERE id = ? AND quantity >= 1", input.ProductID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stock"})
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock for product: " + input.ProductID})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// UpdateOrderStatusInput defines the JSON for a fulfillment update.
type UpdateOrderStatusInput struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus is the handler for PATCH /orders/:order_id/status.
// Only the owner of the store the order belongs to may move its
// fulfillment status, and only to a known status.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	wallet, role := callerIdentity(c)
	orderID := c.Param("order_id")

	if role != "store" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only store owners can update order status"})
		return
	}

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if !models.ValidOrderStatus(input.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Must be one of: pending, shipped, delivered, cancelled"})
		return
	}

	var storeID string
	err := h.DB.QueryRow("SELECT store_id FROM orders WHERE order_id = ?", orderID).Scan(&storeID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	if !h.requireStoreOwner(c, storeID, wallet) {
		return
	}

	_, err = h.DB.Exec("UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE order_id = ?", input.Status, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

// GetStoreOrders is the handler for GET /stores/:id/orders.
func (h *Handlers) GetStoreOrders(c *gin.Context) {
	wallet, _ := callerIdentity(c)
	storeID := c.Param("id")

	if !h.requireStoreOwner(c, storeID, wallet) {
		return
	}

	rows, err := h.DB.Query("SELECT "+orderColumns+" FROM orders WHERE store_id = ? ORDER BY created_at DESC", storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			if errors.Is(err, errMissingTimestamps) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Order record missing timestamps"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder is the handler for GET /orders/:order_id — read one order by
// its composite identifier.
func (h *Handlers) GetOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	order, err := scanOrder(h.DB.QueryRow("SELECT "+orderColumns+" FROM orders WHERE order_id = ?", orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		if errors.Is(err, errMissingTimestamps) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Order record missing timestamps"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	c.JSON(http.StatusOK, order)
}
