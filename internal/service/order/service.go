package order

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// Service реализует жизненный цикл заказа поверх доменных репозиториев.
// Все мутирующие операции выполняют ровно одну попытку записи: конфликт
// версий отдаётся вызывающему как есть.
type Service struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
}

// NewService конструирует сервис с зависимостями. Outbox опционален:
// без него события заказа просто не публикуются.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:   orders,
		products: products,
		outbox:   outbox,
		logger:   logger,
	}
}

// WithMetrics подключает prometheus-метрики заказов. Без вызова
// сервис работает без инструментирования.
func (s *Service) WithMetrics(m *metrics.OrderMetrics) *Service {
	s.metrics = m
	return s
}

// Create создаёт пустой заказ для клиента. Запись собирается целиком —
// включая сгенерированный код — до единственного обращения к хранилищу.
func (s *Service) Create(_ context.Context, clientID string) (domain.Order, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return domain.Order{}, domain.ErrClientRequired
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		Code:          domain.GenerateCode(),
		Status:        domain.OrderStatusPending,
		Items:         []domain.OrderItem{},
		WishlistItems: []domain.OrderItem{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Create(order); err != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Error("failed to create order")
		return domain.Order{}, err
	}

	s.emitEvent(kafka.EventTypeOrderCreated, order, nil)
	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}

	return order, nil
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(_ context.Context, orderID string) (domain.Order, error) {
	return s.loadOrder(orderID, "Get")
}

// GetByCode возвращает заказ по 8-символьному коду для кассира.
func (s *Service) GetByCode(_ context.Context, code string) (domain.Order, error) {
	order, err := s.orders.GetByCode(strings.TrimSpace(code))
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": "GetByCode",
			"code":      code,
		}).Warn("failed to load order by code")
		return domain.Order{}, err
	}
	return order, nil
}

// AddItem находит товар по SKU и добавляет его снимок в корзину.
func (s *Service) AddItem(_ context.Context, orderID, sku string, qty int32, color string) (domain.Order, error) {
	product, err := s.products.GetBySKU(sku)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": "AddItem",
			"order_id":  orderID,
			"sku":       sku,
		}).Warn("failed to resolve product by sku")
		return domain.Order{}, err
	}

	order, err := s.loadOrder(orderID, "AddItem")
	if err != nil {
		return domain.Order{}, err
	}

	if _, err := order.AddItem(uuid.NewString(), product, qty, color, time.Now().UTC()); err != nil {
		return domain.Order{}, err
	}

	if err := s.saveOrder(order, "AddItem"); err != nil {
		return domain.Order{}, err
	}
	order.Version++
	if s.metrics != nil {
		s.metrics.RecordItemOperation("add")
	}

	return order, nil
}

// UpdateItem меняет количество и/или переносит позицию между списками.
// Пустой moveTo означает изменение только количества.
func (s *Service) UpdateItem(_ context.Context, orderID string, index int, qty *int32, moveTo domain.ListType) (domain.Order, error) {
	order, err := s.loadOrder(orderID, "UpdateItem")
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.UpdateItem(index, qty, moveTo, time.Now().UTC()); err != nil {
		return domain.Order{}, err
	}

	if err := s.saveOrder(order, "UpdateItem"); err != nil {
		return domain.Order{}, err
	}
	order.Version++
	if s.metrics != nil {
		s.metrics.RecordItemOperation("update")
	}

	return order, nil
}

// RemoveItem удаляет позицию корзины по индексу.
func (s *Service) RemoveItem(_ context.Context, orderID string, index int) (domain.Order, error) {
	order, err := s.loadOrder(orderID, "RemoveItem")
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.RemoveItem(index, time.Now().UTC()); err != nil {
		return domain.Order{}, err
	}

	if err := s.saveOrder(order, "RemoveItem"); err != nil {
		return domain.Order{}, err
	}
	order.Version++
	if s.metrics != nil {
		s.metrics.RecordItemOperation("remove")
	}

	return order, nil
}

// SetStatus переводит заказ в указанный рабочий статус.
// Строка статуса валидируется до обращения к хранилищу.
func (s *Service) SetStatus(_ context.Context, orderID, rawStatus string) (domain.Order, error) {
	status, err := domain.ParseWorkflowStatus(rawStatus)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.loadOrder(orderID, "SetStatus")
	if err != nil {
		return domain.Order{}, err
	}

	previous := order.Status
	if err := order.SetStatus(status, time.Now().UTC()); err != nil {
		return domain.Order{}, err
	}

	if err := s.saveOrder(order, "SetStatus"); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	s.emitEvent(kafka.EventTypeOrderStatusChanged, order, map[string]interface{}{
		"previous_status": string(previous),
	})
	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(status))
	}

	return order, nil
}

// Close выдаёт заказ на кассе: терминальный статус плюс отметка времени.
// Операция не ограничена предыдущим статусом.
func (s *Service) Close(_ context.Context, orderID string) (domain.Order, error) {
	order, err := s.loadOrder(orderID, "Close")
	if err != nil {
		return domain.Order{}, err
	}

	order.Close(time.Now().UTC())

	if err := s.saveOrder(order, "Close"); err != nil {
		return domain.Order{}, err
	}
	order.Version++

	s.emitEvent(kafka.EventTypeOrderClosed, order, nil)
	if s.metrics != nil {
		s.metrics.RecordOrderClosed()
	}

	return order, nil
}

func (s *Service) loadOrder(orderID, operation string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err == nil {
		return order, nil
	}

	s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"order_id":  orderID,
	}).Warn("failed to load order")

	return domain.Order{}, err
}

func (s *Service) saveOrder(order domain.Order, operation string) error {
	if err := s.orders.Save(order); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"order_id":  order.ID,
		}).Error("failed to save order")
		return err
	}
	return nil
}

// emitEvent кладёт событие в transactional outbox. Ошибка постановки
// не откатывает уже сохранённый заказ и только логируется.
func (s *Service) emitEvent(eventType kafka.EventType, order domain.Order, metadata map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(
		eventType,
		order.ID,
		order.ClientID,
		order.Code,
		string(order.Status),
		order.SubtotalMinor(),
		metadata,
	)

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to encode order event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to enqueue order event")
	}
}
