package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на кассе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, корзина ещё наполняется.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён клиентом.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается персоналом.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusReady — заказ собран и ожидает выдачи.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusCompleted — заказ выдан клиенту.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён до выдачи.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusClosed — терминальный статус; выставляется только операцией Close.
	OrderStatusClosed OrderStatus = "closed"
)

// workflowStatuses перечисляет статусы, доступные кассиру через SetStatus.
// OrderStatusClosed сюда намеренно не входит.
var workflowStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:    {},
	OrderStatusConfirmed:  {},
	OrderStatusProcessing: {},
	OrderStatusReady:      {},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// IsWorkflow сообщает, относится ли статус к рабочему набору.
func (s OrderStatus) IsWorkflow() bool {
	_, ok := workflowStatuses[s]
	return ok
}

// ParseWorkflowStatus валидирует строковый статус из внешнего запроса.
func ParseWorkflowStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.IsWorkflow() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// CanTransition — единая точка политики переходов между статусами.
// Сейчас политика разрешает любой переход внутри рабочего набора,
// включая self-loop; более строгая таблица подставляется здесь,
// не затрагивая вызывающий код.
func CanTransition(from, to OrderStatus) bool {
	_ = from
	return to.IsWorkflow()
}

// ListType указывает, в каком из двух списков находится позиция заказа.
type ListType string

const (
	// ListTypeBuy — активная корзина, участвует в subtotal.
	ListTypeBuy ListType = "buy"
	// ListTypeWishlist — отложенные позиции, в subtotal не входят.
	ListTypeWishlist ListType = "wishlist"
)

// ParseListType валидирует строковое имя списка из внешнего запроса.
func ParseListType(raw string) (ListType, error) {
	switch ListType(raw) {
	case ListTypeBuy, ListTypeWishlist:
		return ListType(raw), nil
	default:
		return "", ErrInvalidListType
	}
}

// OrderItem представляет одну позицию заказа.
// Name и PriceMinor — снимок товара на момент добавления:
// последующие правки товара существующие позиции не меняют.
type OrderItem struct {
	// ID позиции стабилен и присваивается при добавлении.
	ID string
	// ProductID — идентификатор товара-источника.
	ProductID string
	// SKU — внешний артикул товара.
	SKU string
	// Name — название товара на момент добавления.
	Name string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Qty — количество единиц товара.
	Qty int32
	// Color — выбранный цвет (опционально).
	Color string
	// AddedAt фиксирует момент добавления позиции.
	AddedAt time.Time
}

// Order агрегирует корзину, wishlist и статус одного заказа.
// Позиция всегда принадлежит ровно одному из двух списков и
// адресуется позиционным индексом внутри своего списка.
type Order struct {
	ID            string
	ClientID      string
	Code          string
	Status        OrderStatus
	Items         []OrderItem
	WishlistItems []OrderItem
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// AddItem добавляет снимок товара в корзину. Количество должно быть
// положительным; одинаковые SKU не сливаются в одну позицию.
func (o *Order) AddItem(id string, product Product, qty int32, color string, now time.Time) (OrderItem, error) {
	if qty <= 0 {
		return OrderItem{}, ErrItemQtyInvalid
	}

	item := OrderItem{
		ID:         id,
		ProductID:  product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		PriceMinor: product.PriceMinor,
		Qty:        qty,
		Color:      color,
		AddedAt:    now,
	}
	o.Items = append(o.Items, item)
	o.UpdatedAt = now
	return item, nil
}

// UpdateItem меняет количество и/или переносит позицию между списками.
// Индекс всегда проверяется по списку-источнику: перенос в wishlist
// адресует Items, перенос обратно в buy адресует WishlistItems.
// Новое количество применяется к позиции до переноса. Нулевое
// количество записывается как есть (позиция с нулевым вкладом в subtotal).
func (o *Order) UpdateItem(index int, qty *int32, moveTo ListType, now time.Time) error {
	source := &o.Items
	var dest *[]OrderItem

	switch moveTo {
	case "":
		// Только изменение количества.
	case ListTypeWishlist:
		source, dest = &o.Items, &o.WishlistItems
	case ListTypeBuy:
		source, dest = &o.WishlistItems, &o.Items
	default:
		return ErrInvalidListType
	}

	if index < 0 || index >= len(*source) {
		return ErrItemIndexOutOfRange
	}

	if qty != nil {
		if *qty < 0 {
			return ErrItemQtyNegative
		}
		(*source)[index].Qty = *qty
	}

	if dest != nil {
		item := (*source)[index]
		*source = append((*source)[:index], (*source)[index+1:]...)
		*dest = append(*dest, item)
	}

	o.UpdatedAt = now
	return nil
}

// RemoveItem удаляет позицию из корзины со сдвигом хвоста влево.
// Для wishlist операция удаления не предусмотрена.
func (o *Order) RemoveItem(index int, now time.Time) error {
	if index < 0 || index >= len(o.Items) {
		return ErrItemIndexOutOfRange
	}
	o.Items = append(o.Items[:index], o.Items[index+1:]...)
	o.UpdatedAt = now
	return nil
}

// SubtotalMinor возвращает производную сумму корзины: qty * price
// по активным позициям. Wishlist не учитывается, сумма нигде не хранится.
func (o *Order) SubtotalMinor() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += int64(item.Qty) * item.PriceMinor
	}
	return sum
}

// SetStatus переводит заказ в указанный рабочий статус.
func (o *Order) SetStatus(status OrderStatus, now time.Time) error {
	if !status.IsWorkflow() {
		return ErrInvalidStatus
	}
	if !CanTransition(o.Status, status) {
		return ErrInvalidStatus
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

// Close переводит заказ в терминальный статус и фиксирует время закрытия.
// Операция не ограничена предыдущим статусом.
func (o *Order) Close(now time.Time) {
	o.Status = OrderStatusClosed
	closedAt := now
	o.ClosedAt = &closedAt
	o.UpdatedAt = now
}
