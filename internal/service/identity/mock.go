package identity

import (
	"context"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// MockProvider — конфигурируемая заглушка IdentityProvider для тестов.
type MockProvider struct {
	Principals map[string]domain.Principal
	Roles      map[string]string
	VerifyErr  error
	RoleErr    error

	VerifyCalls int
	RoleCalls   int
}

// NewMockProvider возвращает mock без известных токенов и ролей.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Principals: map[string]domain.Principal{},
		Roles:      map[string]string{},
	}
}

// Allow регистрирует токен как валидный для субъекта с заданной ролью.
func (m *MockProvider) Allow(token, subjectID, role string) *MockProvider {
	m.Principals[token] = domain.Principal{SubjectID: subjectID}
	if role != "" {
		m.Roles[subjectID] = role
	}
	return m
}

// VerifyCredential возвращает субъекта для известного токена и считает вызовы.
func (m *MockProvider) VerifyCredential(_ context.Context, token string) (domain.Principal, error) {
	m.VerifyCalls++
	if m.VerifyErr != nil {
		return domain.Principal{}, m.VerifyErr
	}
	principal, ok := m.Principals[token]
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return principal, nil
}

// Role возвращает настроенную роль субъекта и считает вызовы.
func (m *MockProvider) Role(_ context.Context, subjectID string) (string, error) {
	m.RoleCalls++
	if m.RoleErr != nil {
		return "", m.RoleErr
	}
	if role, ok := m.Roles[subjectID]; ok && role != "" {
		return role, nil
	}
	return domain.RoleClient, nil
}

var _ domain.IdentityProvider = (*MockProvider)(nil)
