package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const principalContextKey = "pos.principal"

// authenticate проверяет bearer-токен через IdentityProvider и кладёт
// субъекта в контекст запроса. Отсутствие или невалидность токена — 401
// до любых проверок роли.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		principal, err := s.identity.VerifyCredential(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// requireRole пропускает запрос, только если роль субъекта входит в
// разрешённый набор.
func (s *Server) requireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}

		role, err := s.identity.Role(c.Request.Context(), principal.SubjectID)
		if err != nil {
			s.logger.WithError(err).WithField("subject_id", principal.SubjectID).Warn("failed to resolve subject role")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		for _, candidate := range allowed {
			if role == candidate {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": domain.ErrForbidden.Error()})
	}
}

// instrument записывает счётчик и длительность запроса по шаблону
// маршрута, а не по сырому пути, чтобы не раздувать кардинальность.
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		s.metrics.HTTPRequestStarted()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		s.metrics.HTTPRequestFinished()
	}
}

func principalFrom(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}
