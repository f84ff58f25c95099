package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
)

type createProductRequest struct {
	SKU         string   `json:"sku" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	PriceMinor  int64    `json:"price_minor"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	Colors      []string `json:"colors"`
}

func (s *Server) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := s.catalog.Create(c.Request.Context(), catalog.CreateProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		PriceMinor:  req.PriceMinor,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Colors:      req.Colors,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

func (s *Server) listProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	products, err := s.catalog.List(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, product := range products {
		result = append(result, toProductResponse(product))
	}
	c.JSON(http.StatusOK, gin.H{"products": result})
}

func (s *Server) getProduct(c *gin.Context) {
	product, err := s.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (s *Server) getProductBySKU(c *gin.Context) {
	product, err := s.catalog.BySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}
