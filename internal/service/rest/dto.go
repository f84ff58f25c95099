package rest

import (
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type orderItemResponse struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price_minor"`
	Qty        int32     `json:"qty"`
	Color      string    `json:"color,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id"`
	Code          string              `json:"code"`
	Status        string              `json:"status"`
	Items         []orderItemResponse `json:"items"`
	WishlistItems []orderItemResponse `json:"wishlist_items"`
	SubtotalMinor int64               `json:"subtotal_minor"`
	Version       int64               `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ClosedAt      *time.Time          `json:"closed_at,omitempty"`
}

type productResponse struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	PriceMinor  int64     `json:"price_minor"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Colors      []string  `json:"colors,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOrderResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:            order.ID,
		ClientID:      order.ClientID,
		Code:          order.Code,
		Status:        string(order.Status),
		Items:         toItemResponses(order.Items),
		WishlistItems: toItemResponses(order.WishlistItems),
		SubtotalMinor: order.SubtotalMinor(),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		ClosedAt:      order.ClosedAt,
	}
}

func toItemResponses(items []domain.OrderItem) []orderItemResponse {
	result := make([]orderItemResponse, 0, len(items))
	for _, item := range items {
		result = append(result, orderItemResponse(item))
	}
	return result
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:          product.ID,
		SKU:         product.SKU,
		Name:        product.Name,
		PriceMinor:  product.PriceMinor,
		Description: product.Description,
		ImageURL:    product.ImageURL,
		Colors:      product.Colors,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}
