package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jes-saas/marketplace-golang/internal/chain"
	"github.com/jes-saas/marketplace-golang/internal/telemetry"
)

//
// --- Checkout Orchestrator ---
//
// Checkout settles a whole cart against one verified on-chain payment:
// verify first, then create orders, decrement stock and clear the cart
// inside a single transaction. Verification never runs after a write,
// so the worst interruption is "verified but not settled", never
// "settled without verifying".
//

// CheckoutInput defines the JSON for POST /checkout.
// PaymentType is accepted for forward compatibility; cUSD transfers
// are the only rail today.
type CheckoutInput struct {
	CartID          string `json:"cart_id" binding:"required"`
	BuyerAddress    string `json:"buyer_address" binding:"required"`
	PaymentType     string `json:"payment_type" binding:"required"`
	TransactionHash string `json:"transaction_hash" binding:"required"`
}

// checkoutLine is one cart item joined with its product and store.
type checkoutLine struct {
	ProductID    string
	Quantity     int
	Price        decimal.Decimal
	StoreID      string
	Stock        int
	OwnerAddress string
}

const checkoutLinesQuery = `
	SELECT ci.product_id, ci.quantity, p.price, p.store_id, p.quantity AS stock, s.owner_address
	FROM cart_items ci
	JOIN products p ON ci.product_id = p.id
	JOIN stores s ON p.store_id = s.id
	WHERE ci.cart_id = ?
	ORDER BY ci.id`

// Checkout is the handler for POST /checkout.
func (h *Handlers) Checkout(c *gin.Context) {
	wallet, role := callerIdentity(c)
	if role != "user" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only users can checkout"})
		return
	}

	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	// The token proves who the caller is, not what they may submit:
	// the buyer address in the payload must be the caller's own.
	if wallet != input.BuyerAddress {
		telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
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

	var cartID string
	err = h.DB.QueryRow("SELECT id FROM carts WHERE user_id = ?", user.ID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find cart"})
		return
	}
	if cartID != input.CartID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart ID"})
		return
	}

	// Phase 1: read the cart and decide whether it can settle at all,
	// before spending a chain round-trip on it.
	lines, err := h.loadCheckoutLines(h.DB, cartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart items"})
		return
	}
	if len(lines) == 0 {
		telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	// One checkout settles against exactly one payee. A cart spanning
	// several stores would need one on-chain payment per store, which
	// this rail does not support.
	storeID := lines[0].StoreID
	for _, line := range lines[1:] {
		if line.StoreID != storeID {
			telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart contains items from multiple stores; checkout one store at a time"})
			return
		}
	}

	total := decimal.Zero
	for _, line := range lines {
		if line.Stock < line.Quantity {
			telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock for product: " + line.ProductID})
			return
		}
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	// Phase 2: verify the payment against public chain state. No writes
	// have happened yet, so any failure here is side-effect free.
	sellerAddress := lines[0].OwnerAddress
	if err := h.Verifier.VerifyPayment(c.Request.Context(), input.TransactionHash, sellerAddress, total); err != nil {
		status, reason := verificationFailure(err)
		telemetry.PaymentVerificationFailures.WithLabelValues(reason).Inc()
		if status >= http.StatusInternalServerError {
			telemetry.CheckoutAttempts.WithLabelValues("error").Inc()
		} else {
			telemetry.CheckoutAttempts.WithLabelValues("rejected").Inc()
		}
		c.JSON(status, gin.H{"error": "Payment verification failed: " + err.Error()})
		return
	}

	// Phase 3: settle. Everything below commits or rolls back as one
	// unit; there is no partially-settled state.
	order, status, settleErr := h.settle(c, cartID, input, user.ID, sellerAddress, total)
	if settleErr != nil {
		telemetry.CheckoutAttempts.WithLabelValues(resultLabel(status)).Inc()
		c.JSON(status, gin.H{"error": settleErr.Error()})
		return
	}

	telemetry.CheckoutAttempts.WithLabelValues("settled").Inc()
	c.JSON(http.StatusCreated, order)
}

// settle runs the settlement transaction: re-read the cart under row
// locks, guard against a reused payment, create one order per line,
// decrement stock conditionally, clear the cart. Returns the first
// order created as the representative result.
func (h *Handlers) settle(c *gin.Context, cartID string, input CheckoutInput, userID, sellerAddress string, verifiedTotal decimal.Decimal) (order any, status int, err error) {
	tx, err := h.DB.BeginTx(c.Request.Context(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to start transaction")
	}
	defer tx.Rollback()

	// A transfer pays for exactly one checkout. Without this, the same
	// hash could settle any number of carts.
	var used int
	if err := tx.QueryRow("SELECT COUNT(*) FROM orders WHERE transaction_hash = ?", input.TransactionHash).Scan(&used); err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to check transaction hash")
	}
	if used > 0 {
		return nil, http.StatusConflict, errors.New("Transaction hash already used for a previous order")
	}

	lines, err := h.loadCheckoutLines(tx, cartID)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to fetch cart items")
	}
	if len(lines) == 0 {
		return nil, http.StatusConflict, errors.New("Cart changed during checkout")
	}

	// The verified amount covers the cart as it was read in phase 1. If
	// the cart changed in between, the payment no longer matches it.
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if !total.Equal(verifiedTotal) {
		return nil, http.StatusConflict, errors.New("Cart changed during checkout")
	}

	var firstOrder any
	for _, line := range lines {
		amount := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		created, err := createOrderRow(tx, orderParams{
			StoreID:         line.StoreID,
			ProductID:       line.ProductID,
			UserID:          &userID,
			BuyerAddress:    input.BuyerAddress,
			SellerAddress:   sellerAddress,
			Amount:          amount,
			PaymentStatus:   "confirmed",
			TransactionHash: &input.TransactionHash,
		})
		if err != nil {
			if errors.Is(err, errMissingTimestamps) {
				return nil, http.StatusInternalServerError, errors.New("Order record missing timestamps")
			}
			return nil, http.StatusInternalServerError, errors.New("Failed to create order")
		}

		// Authoritative stock check: the decrement only happens when
		// enough stock is still there, and a miss aborts the whole
		// settlement (the transaction rolls the created orders back).
		res, err := tx.Exec("UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?",
			line.Quantity, line.ProductID, line.Quantity)
		if err != nil {
			return nil, http.StatusInternalServerError, errors.New("Failed to update stock")
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil, http.StatusConflict, errors.New("Insufficient stock for product: " + line.ProductID)
		}

		if firstOrder == nil {
			firstOrder = created
		}
	}

	if _, err := tx.Exec("DELETE FROM cart_items WHERE cart_id = ?", cartID); err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to clear cart")
	}

	if err := tx.Commit(); err != nil {
		return nil, http.StatusInternalServerError, errors.New("Failed to commit checkout")
	}

	return firstOrder, http.StatusCreated, nil
}

// querier lets loadCheckoutLines run on the pool (advisory phase-1
// read) or inside the settlement transaction (locked re-read).
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func (h *Handlers) loadCheckoutLines(q querier, cartID string) ([]checkoutLine, error) {
	query := checkoutLinesQuery
	if _, inTx := q.(*sql.Tx); inTx {
		query += " FOR UPDATE"
	}

	rows, err := q.Query(query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []checkoutLine
	for rows.Next() {
		var line checkoutLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.Price, &line.StoreID, &line.Stock, &line.OwnerAddress); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// verificationFailure maps a verifier error onto an HTTP status and a
// metrics label. Chain-derived rejections are the client's problem
// (payment required); an unreachable node is ours.
func verificationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, chain.ErrMalformedTransactionHash):
		return http.StatusBadRequest, "malformed_hash"
	case errors.Is(err, chain.ErrTransactionNotFound):
		return http.StatusPaymentRequired, "not_found"
	case errors.Is(err, chain.ErrTransactionFailed):
		return http.StatusPaymentRequired, "tx_failed"
	case errors.Is(err, chain.ErrWrongRecipientContract):
		return http.StatusPaymentRequired, "wrong_contract"
	case errors.Is(err, chain.ErrTransferEventMissing):
		return http.StatusPaymentRequired, "transfer_missing"
	case errors.Is(err, chain.ErrSellerMismatch):
		return http.StatusPaymentRequired, "seller_mismatch"
	case errors.Is(err, chain.ErrAmountMismatch):
		return http.StatusPaymentRequired, "amount_mismatch"
	case errors.Is(err, chain.ErrChainUnavailable):
		return http.StatusBadGateway, "chain_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func resultLabel(status int) string {
	if status >= http.StatusInternalServerError {
		return "error"
	}
	return "rejected"
}
