package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	productSKUMaxLen  = 50
	productNameMaxLen = 200
)

// Product описывает товар каталога. ID неизменяем после создания;
// SKU уникален по соглашению и проверяется на пути админского создания.
type Product struct {
	ID          string
	SKU         string
	Name        string
	PriceMinor  int64
	Description string
	ImageURL    string
	Colors      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateNew проверяет поля нового товара и возвращает список замечаний.
func (p *Product) ValidateNew() []error {
	var errs []error

	sku := strings.TrimSpace(p.SKU)
	if l := len(sku); l < 1 || l > productSKUMaxLen {
		errs = append(errs, ErrProductSKUInvalid)
	}
	if l := utf8.RuneCountInString(p.Name); l < 1 || l > productNameMaxLen {
		errs = append(errs, ErrProductNameInvalid)
	}
	if p.PriceMinor <= 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}

	return errs
}
