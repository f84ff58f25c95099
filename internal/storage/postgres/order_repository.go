package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

// orderItemDoc — JSON-представление позиции внутри JSONB-колонок заказа.
// Списки позиций хранятся документом целиком: порядок в массиве и есть
// позиционный индекс, по которому адресуются операции.
type orderItemDoc struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Qty        int32     `json:"qty"`
	Color      string    `json:"color,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := opContext()
	defer cancel()

	items, wishlist, err := marshalItemLists(order)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, client_id, order_code, status, items, wishlist_items,
			version, created_at, updated_at, closed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		order.ID, order.ClientID, order.Code, string(order.Status),
		items, wishlist, order.Version, order.CreatedAt, order.UpdatedAt,
		nullableTime(order.ClosedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	return r.getByField(ctx, "id", id)
}

func (r *orderRepository) GetByCode(code string) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	return r.getByField(ctx, "order_code", code)
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := opContext()
	defer cancel()

	items, wishlist, err := marshalItemLists(order)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    items = $2,
		    wishlist_items = $3,
		    version = version + 1,
		    updated_at = $4,
		    closed_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.Status), items, wishlist, order.UpdatedAt,
		nullableTime(order.ClosedAt), order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (r *orderRepository) getByField(ctx context.Context, field, value string) (domain.Order, error) {
	var (
		order        domain.Order
		status       string
		itemsRaw     []byte
		wishlistRaw  []byte
		closedAtNull sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, client_id, order_code, status, items, wishlist_items,
		       version, created_at, updated_at, closed_at
		FROM orders
		WHERE %s = $1
	`, field), value).Scan(
		&order.ID, &order.ClientID, &order.Code, &status, &itemsRaw, &wishlistRaw,
		&order.Version, &order.CreatedAt, &order.UpdatedAt, &closedAtNull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order by %s: %w", field, err)
	}

	order.Status = domain.OrderStatus(status)
	if closedAtNull.Valid {
		closedAt := closedAtNull.Time.UTC()
		order.ClosedAt = &closedAt
	}

	if order.Items, err = unmarshalItemList(itemsRaw); err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if order.WishlistItems, err = unmarshalItemList(wishlistRaw); err != nil {
		return domain.Order{}, fmt.Errorf("decode wishlist items: %w", err)
	}

	return order, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func marshalItemLists(order domain.Order) ([]byte, []byte, error) {
	items, err := json.Marshal(toItemDocs(order.Items))
	if err != nil {
		return nil, nil, fmt.Errorf("encode order items: %w", err)
	}
	wishlist, err := json.Marshal(toItemDocs(order.WishlistItems))
	if err != nil {
		return nil, nil, fmt.Errorf("encode wishlist items: %w", err)
	}
	return items, wishlist, nil
}

func toItemDocs(items []domain.OrderItem) []orderItemDoc {
	docs := make([]orderItemDoc, 0, len(items))
	for _, item := range items {
		docs = append(docs, orderItemDoc(item))
	}
	return docs
}

func unmarshalItemList(raw []byte) ([]domain.OrderItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var docs []orderItemDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	items := make([]domain.OrderItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.OrderItem(doc))
	}
	return items, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
