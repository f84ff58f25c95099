package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func testOrder(id, code string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:        id,
		ClientID:  "client-1",
		Code:      code,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := testOrder("order-1", "AB12CD34")

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Code != "AB12CD34" {
		t.Fatalf("expected code preserved, got %q", got.Code)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_GetByCode(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Create(testOrder("order-1", "AAAA1111")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(testOrder("order-2", "BBBB2222")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByCode("BBBB2222")
	if err != nil {
		t.Fatalf("get by code failed: %v", err)
	}
	if got.ID != "order-2" {
		t.Fatalf("expected order-2, got %s", got.ID)
	}

	if _, err := repo.GetByCode("ZZZZ0000"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unknown code, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Create(testOrder("order-1", "AB12CD34")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	second := first

	first.Status = domain.OrderStatusConfirmed
	if err := repo.Save(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// Вторая запись несёт устаревшую версию и должна быть отклонена.
	second.Status = domain.OrderStatusCancelled
	if err := repo.Save(second); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	if err := repo.Save(testOrder("missing", "CCCC3333")); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save of missing order, got %v", err)
	}
}

func TestOrderRepository_CopySemantics(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := testOrder("order-1", "AB12CD34")
	now := time.Now().UTC()
	if _, err := order.AddItem("item-1", domain.Product{ID: "p1", SKU: "SKU001", Name: "n", PriceMinor: 100}, 1, "", now); err != nil {
		t.Fatalf("setup add failed: %v", err)
	}
	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	got.Items[0].Qty = 99

	again, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if again.Items[0].Qty != 1 {
		t.Fatal("repository must return copies, not shared slices")
	}
}
