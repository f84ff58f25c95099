package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const defaultListLimit = 100

// CreateProductInput описывает поля нового товара из админского запроса.
type CreateProductInput struct {
	SKU         string
	Name        string
	PriceMinor  int64
	Description string
	ImageURL    string
	Colors      []string
}

// Service реализует операции каталога товаров.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{
		products: products,
		logger:   logger,
	}
}

// Create валидирует и сохраняет новый товар. Валидация возвращает полный
// список замечаний, дубликат SKU отдаётся как конфликт.
func (s *Service) Create(_ context.Context, input CreateProductInput) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		SKU:         strings.TrimSpace(input.SKU),
		Name:        input.Name,
		PriceMinor:  input.PriceMinor,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Colors:      input.Colors,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if errs := product.ValidateNew(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	if err := s.products.Create(product); err != nil {
		s.logger.WithError(err).WithField("sku", product.SKU).Warn("failed to create product")
		return domain.Product{}, err
	}

	return product, nil
}

// Get возвращает товар по идентификатору.
func (s *Service) Get(_ context.Context, id string) (domain.Product, error) {
	product, err := s.products.Get(id)
	if err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("failed to load product")
		return domain.Product{}, err
	}
	return product, nil
}

// BySKU возвращает товар по артикулу.
func (s *Service) BySKU(_ context.Context, sku string) (domain.Product, error) {
	product, err := s.products.GetBySKU(strings.TrimSpace(sku))
	if err != nil {
		s.logger.WithError(err).WithField("sku", sku).Warn("failed to load product by sku")
		return domain.Product{}, err
	}
	return product, nil
}

// List возвращает товары каталога. Лимит ограничен фиксированным
// потолком; значения вне диапазона приводятся к нему.
func (s *Service) List(_ context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	products, err := s.products.List(limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to list products")
		return nil, err
	}
	return products, nil
}
