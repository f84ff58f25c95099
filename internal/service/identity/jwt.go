package identity

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const tokenLeeway = 30 * time.Second

// JWTProvider проверяет HMAC-подписанные токены и сопоставляет
// субъектам роли из операторской карты. Субъект без записи в карте
// считается клиентом.
type JWTProvider struct {
	secret []byte
	roles  map[string]string
	logger *log.Entry
}

// NewJWTProvider конструирует провайдера. Карта ролей может быть nil.
func NewJWTProvider(secret string, roles map[string]string, logger *log.Entry) *JWTProvider {
	if logger == nil {
		logger = log.WithField("component", "identity-jwt")
	}
	return &JWTProvider{
		secret: []byte(secret),
		roles:  roles,
		logger: logger,
	}
}

// VerifyCredential проверяет подпись и срок действия токена и извлекает
// субъекта из claims `sub`/`email`.
func (p *JWTProvider) VerifyCredential(_ context.Context, rawToken string) (domain.Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	}, jwt.WithLeeway(tokenLeeway))

	if err != nil || !token.Valid {
		p.logger.WithError(err).Debug("token verification failed")
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	email, _ := claims["email"].(string)

	return domain.Principal{
		SubjectID: subject,
		Email:     email,
	}, nil
}

// Role возвращает роль субъекта. Неизвестный субъект получает RoleClient.
func (p *JWTProvider) Role(_ context.Context, subjectID string) (string, error) {
	if role, ok := p.roles[subjectID]; ok && role != "" {
		return role, nil
	}
	return domain.RoleClient, nil
}

var _ domain.IdentityProvider = (*JWTProvider)(nil)
