package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет полностью сформированный заказ (включая код).
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// GetByCode возвращает заказ по короткому коду или ErrOrderNotFound.
	GetByCode(code string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Create сохраняет новый товар; занятый SKU — ErrProductSKUConflict.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// GetBySKU возвращает не более одного товара по SKU или ErrProductNotFound.
	GetBySKU(sku string) (Product, error)
	// List возвращает товары каталога, ограничивая выборку limit (если > 0).
	List(limit int) ([]Product, error)
}
