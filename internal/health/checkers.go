package health

import (
	"context"
	"time"
)

// Pinger — контракт хранилища, умеющего проверять соединение.
// Ему удовлетворяет postgres.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FuncChecker оборачивает функцию проверки в Checker.
type FuncChecker struct {
	name    string
	checkFn func(ctx context.Context) error
}

// NewFuncChecker создаёт проверку из функции.
func NewFuncChecker(name string, checkFn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{
		name:    name,
		checkFn: checkFn,
	}
}

// Check выполняет функцию и переводит результат в Check.
func (c *FuncChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.checkFn(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Name:       c.name,
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	return Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}

// NewStoreChecker проверяет доступность базы данных через ping.
func NewStoreChecker(store Pinger) *FuncChecker {
	return NewFuncChecker("postgres", func(ctx context.Context) error {
		return store.Ping(ctx)
	})
}

// slowCheckThreshold — порог, после которого проверка считается деградацией.
const slowCheckThreshold = time.Second

// DegradingChecker помечает медленные, но успешные проверки как degraded.
type DegradingChecker struct {
	inner Checker
}

// NewDegradingChecker оборачивает проверку порогом деградации.
func NewDegradingChecker(inner Checker) *DegradingChecker {
	return &DegradingChecker{inner: inner}
}

// Check деградирует статус успешной, но медленной проверки.
func (c *DegradingChecker) Check(ctx context.Context) Check {
	check := c.inner.Check(ctx)
	if check.Status == StatusHealthy && check.DurationMs >= slowCheckThreshold.Milliseconds() {
		check.Status = StatusDegraded
		check.Message = "check is healthy but slow"
	}
	return check
}
