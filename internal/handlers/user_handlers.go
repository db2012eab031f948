package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/jes-saas/marketplace-golang/internal/auth"
	"github.com/jes-saas/marketplace-golang/internal/models"
)

//
// --- User Registration & Login (wallet-based) ---
//

// duplicateEntryErrNo is MySQL error 1062, raised when an insert hits a
// unique key. For users that means the wallet is already registered.
const duplicateEntryErrNo = 1062

// RegisterUserInput defines the JSON for registering a wallet.
type RegisterUserInput struct {
	WalletAddress string  `json:"wallet_address" binding:"required"`
	UserName      *string `json:"user_name"`
	Email         *string `json:"email"`
	PhoneNumber   *string `json:"phone_number"`
	HouseAddress  *string `json:"house_address"`
}

// RegisterUser is the handler for POST /register.
func (h *Handlers) RegisterUser(c *gin.Context) {
	var input RegisterUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	user := models.User{
		ID:            uuid.New().String(),
		WalletAddress: input.WalletAddress,
		UserName:      input.UserName,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
		HouseAddress:  input.HouseAddress,
	}

	query := `
		INSERT INTO users (id, wallet_address, user_name, email, phone_number, house_address)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := h.DB.Exec(query, user.ID, user.WalletAddress, user.UserName, user.Email, user.PhoneNumber, user.HouseAddress); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntryErrNo {
			c.JSON(http.StatusConflict, gin.H{"error": "Wallet address already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// LoginInput defines the JSON for logging in with a wallet address.
type LoginInput struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// Login is the handler for POST /login. The role baked into the token
// is "store" when the wallet owns a store, otherwise "user".
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if _, err := h.getUserByWallet(input.WalletAddress); err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	role := "user"
	var storeID string
	err := h.DB.QueryRow("SELECT id FROM stores WHERE owner_address = ? LIMIT 1", input.WalletAddress).Scan(&storeID)
	if err == nil {
		role = "store"
	} else if err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up stores"})
		return
	}

	token, err := auth.GenerateToken(input.WalletAddress, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
