package order

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

var orderCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func newTestService(t *testing.T) (*Service, domain.ProductRepository, domain.OutboxRepository) {
	t.Helper()

	orders := memory.NewOrderRepository()
	products := memory.NewProductRepository()
	outbox := memory.NewOutboxRepository()

	return NewService(orders, products, outbox, nil), products, outbox
}

func seedProduct(t *testing.T, products domain.ProductRepository, sku, name string, priceMinor int64) domain.Product {
	t.Helper()

	now := time.Now().UTC()
	product := domain.Product{
		ID:         "product-" + sku,
		SKU:        sku,
		Name:       name,
		PriceMinor: priceMinor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, products.Create(product))
	return product
}

func TestService_CreateOrder(t *testing.T) {
	t.Parallel()

	svc, _, outbox := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)
	require.NotEmpty(t, order.ID)
	require.Equal(t, "client-1", order.ClientID)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Regexp(t, orderCodePattern, order.Code)
	require.Empty(t, order.Items)
	require.Empty(t, order.WishlistItems)
	require.Zero(t, order.SubtotalMinor())

	loaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Code, loaded.Code)

	pending, err := outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, string(kafka.EventTypeOrderCreated), pending[0].EventType)
	require.Equal(t, order.ID, pending[0].AggregateID)
}

func TestService_CreateOrderRequiresClient(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrClientRequired)
}

func TestService_GetByCode(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	found, err := svc.GetByCode(ctx, order.Code)
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	_, err = svc.GetByCode(ctx, "NOPE0000")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_AddItemEndToEndSubtotal(t *testing.T) {
	t.Parallel()

	svc, products, _ := newTestService(t)
	ctx := context.Background()

	seedProduct(t, products, "SKU001", "Mug", 100)

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	updated, err := svc.AddItem(ctx, order.ID, "SKU001", 2, "")
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, int64(200), updated.SubtotalMinor())
	require.Equal(t, "Mug", updated.Items[0].Name)
	require.NotEmpty(t, updated.Items[0].ID)
}

func TestService_AddItemErrors(t *testing.T) {
	t.Parallel()

	svc, products, _ := newTestService(t)
	ctx := context.Background()

	seedProduct(t, products, "SKU001", "Mug", 100)

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, order.ID, "SKU404", 1, "")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.AddItem(ctx, "missing-order", "SKU001", 1, "")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = svc.AddItem(ctx, order.ID, "SKU001", 0, "")
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
}

func TestService_UpdateItemQtyAndMove(t *testing.T) {
	t.Parallel()

	svc, products, _ := newTestService(t)
	ctx := context.Background()

	seedProduct(t, products, "SKU001", "Mug", 100)
	seedProduct(t, products, "SKU002", "Plate", 250)

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, order.ID, "SKU001", 2, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID, "SKU002", 1, "")
	require.NoError(t, err)

	qty := int32(5)
	updated, err := svc.UpdateItem(ctx, order.ID, 0, &qty, "")
	require.NoError(t, err)
	require.Equal(t, int32(5), updated.Items[0].Qty)

	// Перенос первой позиции в wishlist: корзина сжимается, wishlist растёт.
	moved, err := svc.UpdateItem(ctx, order.ID, 0, nil, domain.ListTypeWishlist)
	require.NoError(t, err)
	require.Len(t, moved.Items, 1)
	require.Len(t, moved.WishlistItems, 1)
	require.Equal(t, "SKU001", moved.WishlistItems[0].SKU)
	require.Equal(t, int64(250), moved.SubtotalMinor())

	// Обратный перенос адресует wishlist.
	back, err := svc.UpdateItem(ctx, order.ID, 0, nil, domain.ListTypeBuy)
	require.NoError(t, err)
	require.Len(t, back.Items, 2)
	require.Empty(t, back.WishlistItems)

	_, err = svc.UpdateItem(ctx, order.ID, 99, nil, "")
	require.ErrorIs(t, err, domain.ErrItemIndexOutOfRange)
}

func TestService_RemoveItem(t *testing.T) {
	t.Parallel()

	svc, products, _ := newTestService(t)
	ctx := context.Background()

	seedProduct(t, products, "SKU001", "Mug", 100)
	seedProduct(t, products, "SKU002", "Plate", 250)

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, order.ID, "SKU001", 1, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, order.ID, "SKU002", 1, "")
	require.NoError(t, err)

	updated, err := svc.RemoveItem(ctx, order.ID, 0)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, "SKU002", updated.Items[0].SKU)

	_, err = svc.RemoveItem(ctx, order.ID, 5)
	require.ErrorIs(t, err, domain.ErrItemIndexOutOfRange)
}

func TestService_SetStatus(t *testing.T) {
	t.Parallel()

	svc, _, outbox := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, order.ID, "confirmed")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	// Self-loop разрешён текущей политикой переходов.
	again, err := svc.SetStatus(ctx, order.ID, "confirmed")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusConfirmed, again.Status)

	_, err = svc.SetStatus(ctx, order.ID, "shipped")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, order.ID, "closed")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	pending, err := outbox.PullPending(10)
	require.NoError(t, err)

	var statusEvents int
	for _, msg := range pending {
		if msg.EventType == string(kafka.EventTypeOrderStatusChanged) {
			statusEvents++

			var event kafka.OrderEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &event))
			require.Equal(t, order.ID, event.OrderID)
			require.Equal(t, "confirmed", event.Status)
		}
	}
	require.Equal(t, 2, statusEvents)
}

func TestService_Close(t *testing.T) {
	t.Parallel()

	svc, _, outbox := newTestService(t)
	ctx := context.Background()

	order, err := svc.Create(ctx, "client-1")
	require.NoError(t, err)

	closed, err := svc.Close(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// Close не ограничен предыдущим статусом: повторный вызов тоже проходит.
	reclosed, err := svc.Close(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusClosed, reclosed.Status)

	pending, err := outbox.PullPending(10)
	require.NoError(t, err)

	var closedEvents int
	for _, msg := range pending {
		if msg.EventType == string(kafka.EventTypeOrderClosed) {
			closedEvents++
		}
	}
	require.Equal(t, 2, closedEvents)
}

func TestService_WorksWithoutOutbox(t *testing.T) {
	t.Parallel()

	orders := memory.NewOrderRepository()
	products := memory.NewProductRepository()
	svc := NewService(orders, products, nil, nil)

	order, err := svc.Create(context.Background(), "client-1")
	require.NoError(t, err)
	require.NotEmpty(t, order.Code)
}
