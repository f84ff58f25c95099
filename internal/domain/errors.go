package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrClientRequired = errors.New("client_id is required")
	// Ошибка при некорректном количестве на добавлении (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка отрицательного количества на обновлении (ноль допускается).
	ErrItemQtyNegative = errors.New("item qty must be non-negative")
	// Ошибка позиционного индекса вне границ списка-источника.
	ErrItemIndexOutOfRange = errors.New("item index is out of range")
	// Ошибка неизвестного имени списка (ожидается buy или wishlist).
	ErrInvalidListType = errors.New("list type must be buy or wishlist")
	// Ошибка статуса вне рабочего набора.
	ErrInvalidStatus = errors.New("unknown order status")
	// ErrOrderNotFound возвращается, если заказ не найден ни по id, ни по коду.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrProductNotFound возвращается при промахе поиска товара по id или SKU.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductSKUConflict — попытка создать товар с уже занятым SKU.
	ErrProductSKUConflict = errors.New("product sku already exists")
	// Ошибка длины SKU (допустимо 1-50 символов).
	ErrProductSKUInvalid = errors.New("sku must be 1-50 characters")
	// Ошибка длины названия товара (допустимо 1-200 символов).
	ErrProductNameInvalid = errors.New("name must be 1-200 characters")
	// Ошибка неположительной цены товара.
	ErrProductPriceInvalid = errors.New("price_minor must be greater than zero")
	// ErrUnauthenticated — учётные данные отсутствуют или не прошли проверку.
	ErrUnauthenticated = errors.New("credential is missing or invalid")
	// ErrForbidden — роль субъекта не допускает операцию.
	ErrForbidden = errors.New("role is not permitted for this operation")
	// Ошибка отсутствующего idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// Ошибка отсутствующего хэша запроса для idempotency-записи.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound возвращается, если запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят записью с тем же хэшем.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with different request")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// validationErrors — ошибки, которые операционная граница отдаёт как 400.
var validationErrors = []error{
	ErrClientRequired,
	ErrItemQtyInvalid,
	ErrItemQtyNegative,
	ErrItemIndexOutOfRange,
	ErrInvalidListType,
	ErrInvalidStatus,
	ErrProductSKUInvalid,
	ErrProductNameInvalid,
	ErrProductPriceInvalid,
}

// IsValidation проверяет, относится ли ошибка к нарушениям входных данных.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound проверяет, является ли ошибка промахом поиска.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrProductNotFound)
}

// IsConflict проверяет, является ли ошибка конфликтом состояния.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) ||
		errors.Is(err, ErrProductSKUConflict) ||
		errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
