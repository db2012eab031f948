package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jes-saas/marketplace-golang/internal/models"
)

//
// --- Store Handlers ---
//

// StoreInput defines the JSON for creating or updating a store.
// Image is an optional base64 payload that gets pinned to IPFS.
type StoreInput struct {
	StoreName    string  `json:"store_name" binding:"required"`
	Image        *string `json:"image"`
	Description  *string `json:"description"`
	OwnerAddress string  `json:"owner_address" binding:"required"`
}

// CreateStore is the handler for POST /create_store. Any authenticated
// wallet may open a store, but only for its own address.
func (h *Handlers) CreateStore(c *gin.Context) {
	wallet, _ := callerIdentity(c)

	var input StoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if wallet != input.OwnerAddress {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid owner address"})
		return
	}

	imageCID, ok := h.pinImage(c, input.Image)
	if !ok {
		return
	}

	store := models.Store{
		ID:           uuid.New().String(),
		StoreName:    input.StoreName,
		ImageCID:     imageCID,
		Description:  input.Description,
		OwnerAddress: input.OwnerAddress,
	}
	store.ShareLink = shareLinkFor(store.ID)

	query := `
		INSERT INTO stores (id, store_name, image_cid, description, owner_address)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := h.DB.Exec(query, store.ID, store.StoreName, store.ImageCID, store.Description, store.OwnerAddress); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create store"})
		return
	}

	c.JSON(http.StatusCreated, store)
}

// UpdateStore is the handler for PUT /stores/:id.
func (h *Handlers) UpdateStore(c *gin.Context) {
	wallet, _ := callerIdentity(c)
	storeID := c.Param("id")

	var input StoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if !h.requireStoreOwner(c, storeID, wallet) {
		return
	}

	imageCID, ok := h.pinImage(c, input.Image)
	if !ok {
		return
	}

	query := `
		UPDATE stores
		SET store_name = ?, image_cid = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	if _, err := h.DB.Exec(query, input.StoreName, imageCID, input.Description, storeID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update store"})
		return
	}

	store, err := h.getStore(storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload store"})
		return
	}
	c.JSON(http.StatusOK, store)
}

// DeleteStore is the handler for DELETE /stores/:id.
func (h *Handlers) DeleteStore(c *gin.Context) {
	wallet, _ := callerIdentity(c)
	storeID := c.Param("id")

	if !h.requireStoreOwner(c, storeID, wallet) {
		return
	}

	if _, err := h.DB.Exec("DELETE FROM stores WHERE id = ?", storeID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Store deleted"})
}

// GetAllStores is the handler for GET /stores (public).
func (h *Handlers) GetAllStores(c *gin.Context) {
	rows, err := h.DB.Query("SELECT id, store_name, image_cid, description, owner_address FROM stores")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stores"})
		return
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		var s models.Store
		if err := rows.Scan(&s.ID, &s.StoreName, &s.ImageCID, &s.Description, &s.OwnerAddress); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan store"})
			return
		}
		s.ShareLink = shareLinkFor(s.ID)
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating stores"})
		return
	}

	c.JSON(http.StatusOK, stores)
}

// GetStoreByID is the handler for GET /store/:store_id (public).
func (h *Handlers) GetStoreByID(c *gin.Context) {
	store, err := h.getStore(c.Param("store_id"))
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch store"})
		return
	}
	c.JSON(http.StatusOK, store)
}

func (h *Handlers) getStore(storeID string) (*models.Store, error) {
	var s models.Store
	query := "SELECT id, store_name, image_cid, description, owner_address FROM stores WHERE id = ?"
	err := h.DB.QueryRow(query, storeID).Scan(&s.ID, &s.StoreName, &s.ImageCID, &s.Description, &s.OwnerAddress)
	if err != nil {
		return nil, err
	}
	s.ShareLink = shareLinkFor(s.ID)
	return &s, nil
}

// requireStoreOwner verifies the store exists and belongs to wallet,
// writing the error response itself when it does not.
func (h *Handlers) requireStoreOwner(c *gin.Context, storeID, wallet string) bool {
	var ownerAddress string
	err := h.DB.QueryRow("SELECT owner_address FROM stores WHERE id = ?", storeID).Scan(&ownerAddress)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch store"})
		return false
	}
	if ownerAddress != wallet {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not store owner"})
		return false
	}
	return true
}

// pinImage uploads an optional base64 image to IPFS. On failure it
// writes the error response and returns ok=false.
func (h *Handlers) pinImage(c *gin.Context, image *string) (*string, bool) {
	if image == nil || *image == "" {
		return nil, true
	}
	cid, err := h.IPFS.UploadImage(c.Request.Context(), *image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image: " + err.Error()})
		return nil, false
	}
	return &cid, true
}
