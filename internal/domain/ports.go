package domain

import (
	"context"
	"time"
)

// Роли субъектов, известные политике авторизации.
const (
	RoleClient  = "client"
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

// Principal — подтверждённый субъект запроса.
type Principal struct {
	SubjectID string
	Email     string
}

// IdentityProvider описывает взаимодействие с провайдером учётных данных.
type IdentityProvider interface {
	// VerifyCredential проверяет токен и возвращает субъекта либо ErrUnauthenticated.
	VerifyCredential(ctx context.Context, token string) (Principal, error)
	// Role возвращает роль субъекта; неизвестный субъект получает RoleClient.
	Role(ctx context.Context, subjectID string) (string, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	FailedCount     int
	OldestPendingAt time.Time
}
