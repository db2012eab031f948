package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jes-saas/marketplace-golang/internal/handlers"
	"github.com/jes-saas/marketplace-golang/internal/middleware"
	"github.com/jes-saas/marketplace-golang/internal/telemetry"
)

// CORSMiddleware reflects the request origin so wallet frontends on any
// host can talk to the API. Credentials stay enabled because the
// storefront sends the JWT in the Authorization header.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter wires every route. Reads on stores and products are
// public; everything that writes, plus cart and order reads, sits
// behind the JWT middleware.
func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())

	// --- Public Routes ---
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Marketplace API is running"})
	})
	router.POST("/register", h.RegisterUser)
	router.POST("/login", h.Login)
	router.GET("/stores", h.GetAllStores)
	router.GET("/store/:store_id", h.GetStoreByID)
	router.GET("/stores/:id/products", h.ListProducts)
	router.GET("/products/:id/quantity", h.GetProductQuantity)
	router.GET("/orders/:order_id", h.GetOrder)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	// --- Protected Routes (Login Required) ---
	auth := router.Group("/")
	auth.Use(middleware.AuthMiddleware())
	{
		// Store management
		auth.POST("/create_store", h.CreateStore)
		auth.PUT("/stores/:id", h.UpdateStore)
		auth.DELETE("/stores/:id", h.DeleteStore)
		auth.POST("/stores/:id/products", h.AddProduct)
		auth.GET("/stores/:id/orders", h.GetStoreOrders)
		auth.PATCH("/orders/:order_id/status", h.UpdateOrderStatus)

		// Buyer flows
		auth.POST("/cart", h.AddToCart)
		auth.GET("/cart", h.GetCart)
		auth.POST("/create_orders", h.CreateOrder)
		auth.POST("/checkout", h.Checkout)
	}

	return router
}
