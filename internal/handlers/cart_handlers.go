package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jes-saas/marketplace-golang/internal/models"
)

//
// --- Cart Handlers (buyer role only) ---
//

// getOrCreateCartID finds the user's cart or creates one.
// Helper for use inside a transaction.
func getOrCreateCartID(tx *sql.Tx, userID string) (string, error) {
	var cartID string
	err := tx.QueryRow("SELECT id FROM carts WHERE user_id = ?", userID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	cartID = uuid.New().String()
	if _, err := tx.Exec("INSERT INTO carts (id, user_id) VALUES (?, ?)", cartID, userID); err != nil {
		return "", err
	}
	return cartID, nil
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// AddToCart is the handler for POST /cart. Adding a product already in
// the cart increments its quantity; there is at most one row per
// (cart, product) pair.
func (h *Handlers) AddToCart(c *gin.Context) {
	wallet, role := callerIdentity(c)
	if role != "user" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only users can add to cart"})
		return
	}

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
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

	cartID, err := getOrCreateCartID(tx, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cart initialization failed"})
		return
	}

	var stock int
	err = tx.QueryRow("SELECT quantity FROM products WHERE id = ?", input.ProductID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check product"})
		return
	}
	if stock < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock"})
		return
	}

	_, err = tx.Exec(`
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		uuid.New().String(), cartID, input.ProductID, input.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
		return
	}

	var item models.CartItem
	err = tx.QueryRow(
		"SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id = ? AND product_id = ?",
		cartID, input.ProductID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cart item"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Commit failed"})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetCart is the handler for GET /cart. It returns the cart row, its
// items, and the exact decimal total. A wallet without a cart gets an
// empty object, matching what the storefront expects.
func (h *Handlers) GetCart(c *gin.Context) {
	wallet, role := callerIdentity(c)
	if role != "user" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only users can view cart"})
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

	var cart models.Cart
	err = h.DB.QueryRow("SELECT id, user_id FROM carts WHERE user_id = ?", user.ID).Scan(&cart.ID, &cart.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}

	rows, err := h.DB.Query("SELECT id, cart_id, product_id, quantity FROM cart_items WHERE cart_id = ?", cart.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query cart items"})
		return
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cart item"})
			return
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating cart items"})
		return
	}

	var total decimal.NullDecimal
	err = h.DB.QueryRow(`
		SELECT SUM(p.price * ci.quantity)
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = ?`, cart.ID).Scan(&total)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate cart total"})
		return
	}

	cartTotal := decimal.Zero
	if total.Valid {
		cartTotal = total.Decimal
	}

	c.JSON(http.StatusOK, gin.H{
		"cart":  cart,
		"items": items,
		"total": cartTotal,
	})
}
