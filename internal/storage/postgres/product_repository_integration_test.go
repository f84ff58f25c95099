package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestProductRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	first := samplePostgresProduct("product-1", "SKU-CHAIR", "Chair", 150, now.Add(-2*time.Minute))
	second := samplePostgresProduct("product-2", "SKU-TABLE", "Table", 500, now.Add(-time.Minute))

	if err := repo.Create(first); err != nil {
		t.Fatalf("create first product: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create second product: %v", err)
	}

	got, err := repo.Get(first.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.SKU != first.SKU || got.Name != first.Name || got.PriceMinor != first.PriceMinor {
		t.Fatalf("unexpected product payload: %+v", got)
	}
	if len(got.Colors) != 2 || got.Colors[0] != "black" {
		t.Fatalf("colors were not preserved: %+v", got.Colors)
	}

	bySKU, err := repo.GetBySKU("  SKU-TABLE  ")
	if err != nil {
		t.Fatalf("get product by sku: %v", err)
	}
	if bySKU.ID != second.ID {
		t.Fatalf("unexpected product by sku: %+v", bySKU)
	}

	listed, err := repo.List(1)
	if err != nil {
		t.Fatalf("list products with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != first.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("list products without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}
}

func TestProductRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := samplePostgresProduct("product-errors", "SKU-DUP", "Lamp", 75, now)

	if _, err := repo.Get("missing-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.GetBySKU("SKU-MISSING"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound by sku, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base product: %v", err)
	}

	dup := base
	dup.ID = "product-errors-2"
	if err := repo.Create(dup); !errors.Is(err, domain.ErrProductSKUConflict) {
		t.Fatalf("expected ErrProductSKUConflict, got %v", err)
	}
}

func samplePostgresProduct(id, sku, name string, priceMinor int64, createdAt time.Time) domain.Product {
	return domain.Product{
		ID:          id,
		SKU:         sku,
		Name:        name,
		PriceMinor:  priceMinor,
		Description: "integration test product",
		ImageURL:    "https://example.com/" + id + ".png",
		Colors:      []string{"black", "white"},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}
