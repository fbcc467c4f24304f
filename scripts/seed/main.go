package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type seedItem struct {
	name      string
	category  string
	quantity  int64
	threshold int64
	price     string
	// adjustments replayed after creation so the ledger has movement.
	adjustments []int64
}

var catalogue = []seedItem{
	{name: "Hex Bolt M8", category: "Fasteners", quantity: 420, threshold: 100, price: "0.18", adjustments: []int64{-120, 60}},
	{name: "Washer M8", category: "Fasteners", quantity: 80, threshold: 100, price: "0.04", adjustments: []int64{-30}},
	{name: "Cordless Drill", category: "Tools", quantity: 6, threshold: 5, price: "129.00", adjustments: []int64{-2}},
	{name: "Safety Gloves", category: "PPE", quantity: 0, threshold: 20, price: "3.50"},
	{name: "Cable Ties 200mm", category: "Electrical", quantity: 1500, threshold: 250, price: "0.02", adjustments: []int64{-400, -300, 500}},
	{name: "Shop Rags", quantity: 12, threshold: 0},
}

var seeder = shared.Actor{ID: "seed", Name: "Seed Script", Role: shared.RoleAdmin}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver == app.StoreMemory {
		log.Fatalf("seed requires STORE_DRIVER=postgres or mysql")
	}

	backend, err := app.OpenBackend(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer backend.Close()

	service := inventory.NewService(inventory.ServiceDeps{
		Items:  backend.Items,
		Ledger: backend.Ledger,
		Tx:     backend.Tx,
	}, cfg.ServiceConfig())

	fmt.Println("→ Seeding inventory items...")
	for _, s := range catalogue {
		if err := seed(ctx, service, s); err != nil {
			log.Fatalf("seed %s: %v", s.name, err)
		}
	}
	fmt.Println("✓ Seed complete")
}

func seed(ctx context.Context, service *inventory.Service, s seedItem) error {
	qty := s.quantity
	input := inventory.ItemInput{
		Name:             s.name,
		Category:         s.category,
		Quantity:         &qty,
		ReorderThreshold: s.threshold,
	}
	if s.price != "" {
		price, err := decimal.NewFromString(s.price)
		if err != nil {
			return err
		}
		input.Price = &price
	}
	item, err := service.Create(ctx, input, seeder)
	if err != nil {
		return err
	}
	for _, delta := range s.adjustments {
		if item, err = service.AdjustBy(ctx, item.ID, delta, seeder); err != nil {
			return err
		}
	}
	fmt.Printf("  %-20s qty=%d\n", item.Name, item.Quantity)
	return nil
}
