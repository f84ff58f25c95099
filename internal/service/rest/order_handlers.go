package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type addItemRequest struct {
	SKU   string `json:"sku" binding:"required"`
	Qty   int32  `json:"qty"`
	Color string `json:"color"`
}

type updateItemRequest struct {
	Qty  *int32 `json:"qty"`
	List string `json:"list"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// createOrder создаёт пустой заказ для аутентифицированного клиента.
// Заголовок X-Idempotency-Key делает операцию идемпотентной.
func (s *Server) createOrder(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
		return
	}

	s.withIdempotency(c, func() (int, any, error) {
		order, err := s.orders.Create(c.Request.Context(), principal.SubjectID)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, toOrderResponse(order), nil
	})
}

func (s *Server) getOrder(c *gin.Context) {
	order, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) getOrderByCode(c *gin.Context) {
	order, err := s.orders.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.orders.AddItem(c.Request.Context(), c.Param("id"), req.SKU, req.Qty, req.Color)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) updateItem(c *gin.Context) {
	index, ok := itemIndexParam(c)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var moveTo domain.ListType
	if req.List != "" {
		parsed, err := domain.ParseListType(req.List)
		if err != nil {
			s.writeError(c, err)
			return
		}
		moveTo = parsed
	}

	order, err := s.orders.UpdateItem(c.Request.Context(), c.Param("id"), index, req.Qty, moveTo)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) removeItem(c *gin.Context) {
	index, ok := itemIndexParam(c)
	if !ok {
		return
	}

	order, err := s.orders.RemoveItem(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) closeOrder(c *gin.Context) {
	order, err := s.orders.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) setStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := s.orders.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func itemIndexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrItemIndexOutOfRange.Error()})
		return 0, false
	}
	return index, true
}
