package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/centuary/backend-dealer/internal/cart"
	"github.com/centuary/backend-dealer/internal/catalog"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/scheme"
)

// Warms a development Redis with demo state for the mock dealer so the
// portal is usable straight after `CRM_MODE=mock` startup: hot catalog
// cache plus a cart mid-flight for DLR-1001.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}

	mock := crm.NewMock()

	seedCatalogCache(ctx, client, mock)
	seedDemoCart(ctx, client, mock)

	log.Println("Seeding completed successfully!")
}

func seedCatalogCache(ctx context.Context, client *redis.Client, mock *crm.Mock) {
	fmt.Println("Warming catalog cache...")
	svc := &catalog.Service{CRM: mock, Cache: catalog.NewCache(client, 30*time.Minute)}

	products, err := svc.List(ctx, catalog.ListParams{})
	if err != nil {
		log.Fatalf("Failed to warm catalog cache: %v", err)
	}
	log.Printf("Cached %d products", len(products))
}

func seedDemoCart(ctx context.Context, client *redis.Client, mock *crm.Mock) {
	fmt.Println("Seeding demo cart for DLR-1001...")
	svc := &cart.Service{
		Store:   &cart.Store{R: client, TTL: 7 * 24 * time.Hour},
		Schemes: &scheme.Service{CRM: mock},
	}

	const dealerID = "DLR-1001"
	if _, err := svc.SetCustomer(ctx, dealerID, "C-201", "Anita Verma"); err != nil {
		log.Fatalf("Failed to set cart customer: %v", err)
	}
	if _, err := svc.SetPaymentTerms(ctx, dealerID, "Net 30"); err != nil {
		log.Fatalf("Failed to set payment terms: %v", err)
	}

	products, err := mock.QueryProducts(ctx)
	if err != nil {
		log.Fatalf("Failed to load mock products: %v", err)
	}
	for _, p := range products {
		if p.ID == "P-100" || p.ID == "P-104" {
			if _, err := svc.AddItem(ctx, dealerID, p); err != nil {
				log.Printf("Failed to add %s to demo cart: %v", p.ID, err)
			}
		}
	}
	log.Println("Demo cart ready")
}
