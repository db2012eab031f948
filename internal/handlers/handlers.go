package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jes-saas/marketplace-golang/internal/middleware"
	"github.com/jes-saas/marketplace-golang/internal/models"
)

// PaymentVerifier decides whether an on-chain transaction satisfies a
// payment assertion. Implemented by chain.Verifier.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txHash, sellerAddress string, amount decimal.Decimal) error
}

// ImagePinner stores an image blob and returns its content ID.
// Implemented by ipfs.Client.
type ImagePinner interface {
	UploadImage(ctx context.Context, imageData string) (string, error)
}

// Handlers holds the shared clients every handler needs. Everything is
// injected in main; there is no ambient global state.
type Handlers struct {
	DB       *sql.DB
	Verifier PaymentVerifier
	IPFS     ImagePinner
}

// callerIdentity returns the wallet address and role the auth
// middleware validated for this request.
func callerIdentity(c *gin.Context) (wallet, role string) {
	walletRaw, _ := c.Get(middleware.CtxWalletAddress)
	roleRaw, _ := c.Get(middleware.CtxRole)
	wallet, _ = walletRaw.(string)
	role, _ = roleRaw.(string)
	return wallet, role
}

// getUserByWallet loads a user row by wallet address.
// Returns sql.ErrNoRows when the wallet is not registered.
func (h *Handlers) getUserByWallet(wallet string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, wallet_address, user_name, email, phone_number, house_address
		FROM users
		WHERE wallet_address = ?`
	err := h.DB.QueryRow(query, wallet).Scan(
		&user.ID, &user.WalletAddress, &user.UserName, &user.Email, &user.PhoneNumber, &user.HouseAddress,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// shareLinkFor builds the public storefront link for a store.
func shareLinkFor(storeID string) string {
	base := os.Getenv("STORE_SHARE_BASE_URL")
	if base == "" {
		base = "https://jes-saas.onrender.com"
	}
	return fmt.Sprintf("%s/store/%s", base, storeID)
}
