package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := opContext()
	defer cancel()

	colors, err := json.Marshal(product.Colors)
	if err != nil {
		return fmt.Errorf("encode product colors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, name, price_minor, description, image_url, colors,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		product.ID, strings.TrimSpace(product.SKU), product.Name, product.PriceMinor,
		product.Description, product.ImageURL, colors,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductSKUConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := opContext()
	defer cancel()

	return r.getByField(ctx, "id", id)
}

func (r *productRepository) GetBySKU(sku string) (domain.Product, error) {
	ctx, cancel := opContext()
	defer cancel()

	return r.getByField(ctx, "sku", strings.TrimSpace(sku))
}

func (r *productRepository) List(limit int) ([]domain.Product, error) {
	ctx, cancel := opContext()
	defer cancel()

	query := `
		SELECT id, sku, name, price_minor, description, image_url, colors,
		       created_at, updated_at
		FROM products
		ORDER BY created_at ASC, id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) getByField(ctx context.Context, field, value string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, sku, name, price_minor, description, image_url, colors,
		       created_at, updated_at
		FROM products
		WHERE %s = $1
	`, field), value)

	product, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product by %s: %w", field, err)
	}

	return product, nil
}

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var (
		product   domain.Product
		colorsRaw []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scan(
		&product.ID, &product.SKU, &product.Name, &product.PriceMinor,
		&product.Description, &product.ImageURL, &colorsRaw,
		&createdAt, &updatedAt,
	); err != nil {
		return domain.Product{}, err
	}

	product.CreatedAt = createdAt.UTC()
	product.UpdatedAt = updatedAt.UTC()

	if len(colorsRaw) > 0 {
		if err := json.Unmarshal(colorsRaw, &product.Colors); err != nil {
			return domain.Product{}, fmt.Errorf("decode product colors: %w", err)
		}
	}

	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
