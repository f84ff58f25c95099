package rest

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/order"
)

// Server собирает HTTP-поверхность сервиса поверх gin.
type Server struct {
	orders   *order.Service
	catalog  *catalog.Service
	identity domain.IdentityProvider
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewServer конструирует сервер. IdempotencyRepository опционален:
// без него заголовок X-Idempotency-Key игнорируется.
func NewServer(
	orders *order.Service,
	catalogSvc *catalog.Service,
	identity domain.IdentityProvider,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "rest-server")
	}
	return &Server{
		orders:   orders,
		catalog:  catalogSvc,
		identity: identity,
		idemRepo: idemRepo,
		logger:   logger,
	}
}

// WithMetrics включает инструментирование HTTP-запросов. Вызывается
// до Router().
func (s *Server) WithMetrics(m *metrics.OrderMetrics) *Server {
	s.metrics = m
	return s
}

// Router возвращает настроенный gin-движок со всеми маршрутами.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if s.metrics != nil {
		router.Use(s.instrument())
	}

	api := router.Group("/api/v1")

	products := api.Group("/products")
	{
		products.GET("", s.listProducts)
		products.GET("/:id", s.getProduct)
		products.GET("/sku/:sku", s.getProductBySKU)
		products.POST("", s.authenticate(), s.requireRole(domain.RoleAdmin), s.createProduct)
	}

	orders := api.Group("/orders", s.authenticate())
	{
		orders.POST("", s.createOrder)
		orders.GET("/:id", s.getOrder)
		orders.POST("/:id/items", s.addItem)
		orders.PATCH("/:id/items/:index", s.updateItem)
		orders.DELETE("/:id/items/:index", s.removeItem)
		orders.POST("/:id/close", s.closeOrder)
		orders.PUT("/:id/status", s.requireRole(domain.RoleCashier, domain.RoleAdmin), s.setStatus)
		orders.GET("/code/:code", s.requireRole(domain.RoleCashier, domain.RoleAdmin), s.getOrderByCode)
	}

	return router
}
