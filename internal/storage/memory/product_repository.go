package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// productRepositoryInMemory — in-memory реализация каталога товаров.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
	// skuIndex хранит соответствие SKU -> product ID для поиска и
	// проверки уникальности на создании.
	skuIndex map[string]string
}

// NewProductRepository возвращает in-memory каталог для разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items:    make(map[string]domain.Product),
		skuIndex: make(map[string]string),
	}
}

// Create сохраняет товар; занятый SKU отклоняется конфликтом.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sku := strings.TrimSpace(product.SKU)
	if _, exists := r.skuIndex[sku]; exists {
		return domain.ErrProductSKUConflict
	}

	r.items[product.ID] = cloneProduct(product)
	r.skuIndex[sku] = product.ID
	return nil
}

// Get возвращает товар по идентификатору или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// GetBySKU возвращает единственный товар с данным SKU или ErrProductNotFound.
func (r *productRepositoryInMemory) GetBySKU(sku string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.skuIndex[strings.TrimSpace(sku)]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(r.items[id]), nil
}

// List возвращает товары, ограничивая выборку limit (если > 0).
func (r *productRepositoryInMemory) List(limit int) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		result = append(result, cloneProduct(product))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneProduct(src domain.Product) domain.Product {
	dst := src
	dst.Colors = append([]string(nil), src.Colors...)
	return dst
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
