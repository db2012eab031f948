package main

import (
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/jes-saas/marketplace-golang/internal/chain"
	"github.com/jes-saas/marketplace-golang/internal/database"
	"github.com/jes-saas/marketplace-golang/internal/handlers"
	"github.com/jes-saas/marketplace-golang/internal/ipfs"
	"github.com/jes-saas/marketplace-golang/internal/routes"
)

func main() {
	// --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("CRITICAL ERROR: JWT_SECRET environment variable is not set.")
	}

	// --- Database Connection ---
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// --- Chain Client (payment verification) ---
	providerURL := os.Getenv("WEB3_PROVIDER_URL")
	if providerURL == "" {
		log.Fatal("CRITICAL ERROR: WEB3_PROVIDER_URL environment variable is not set.")
	}
	ethClient, err := ethclient.Dial(providerURL)
	if err != nil {
		log.Fatalf("Failed to connect to chain provider: %v", err)
	}
	defer ethClient.Close()

	tokenAddress := os.Getenv("CUSD_CONTRACT_ADDRESS")
	if tokenAddress == "" {
		tokenAddress = chain.DefaultTokenAddress
	}
	if !common.IsHexAddress(tokenAddress) {
		log.Fatalf("CRITICAL ERROR: invalid CUSD_CONTRACT_ADDRESS %q", tokenAddress)
	}
	verifier := chain.NewVerifier(ethClient, common.HexToAddress(tokenAddress))

	// --- IPFS Client (Pinata) ---
	pinata := ipfs.NewClient(os.Getenv("PINATA_API_KEY"), os.Getenv("PINATA_SECRET_KEY"))

	// --- Application Setup ---
	// Inject all dependencies into the Handlers struct.
	app := &handlers.Handlers{
		DB:       db,
		Verifier: verifier,
		IPFS:     pinata,
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app)

	// --- Start Server ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting Marketplace API server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
