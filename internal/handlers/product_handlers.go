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
// --- Product Handlers ---
//

// AddProductInput defines the JSON for listing a product in a store.
type AddProductInput struct {
	ProductName string          `json:"product_name" binding:"required"`
	Image       *string         `json:"image"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Quantity    int             `json:"quantity" binding:"gte=0"`
}

// AddProduct is the handler for POST /stores/:id/products.
func (h *Handlers) AddProduct(c *gin.Context) {
	wallet, role := callerIdentity(c)
	storeID := c.Param("id")

	if role != "store" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only store owners can add products"})
		return
	}

	var input AddProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return
	}

	if !h.requireStoreOwner(c, storeID, wallet) {
		return
	}

	imageCID, ok := h.pinImage(c, input.Image)
	if !ok {
		return
	}

	product := models.Product{
		ID:          uuid.New().String(),
		StoreID:     storeID,
		ProductName: input.ProductName,
		ImageCID:    imageCID,
		Description: input.Description,
		Price:       input.Price,
		Quantity:    input.Quantity,
	}

	query := `
		INSERT INTO products (id, store_id, product_name, image_cid, description, price, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := h.DB.Exec(query, product.ID, product.StoreID, product.ProductName, product.ImageCID, product.Description, product.Price, product.Quantity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// ListProducts is the handler for GET /stores/:id/products (public).
func (h *Handlers) ListProducts(c *gin.Context) {
	storeID := c.Param("id")

	query := `
		SELECT id, store_id, product_name, image_cid, description, price, quantity
		FROM products
		WHERE store_id = ?`
	rows, err := h.DB.Query(query, storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list products"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.ProductName, &p.ImageCID, &p.Description, &p.Price, &p.Quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan product"})
			return
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating products"})
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetProductQuantity is the handler for GET /products/:id/quantity (public).
func (h *Handlers) GetProductQuantity(c *gin.Context) {
	productID := c.Param("id")

	var quantity int
	err := h.DB.QueryRow("SELECT quantity FROM products WHERE id = ?", productID).Scan(&quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product quantity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quantity": quantity})
}
