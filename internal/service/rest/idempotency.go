package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	idempotencyKeyHeader = "X-Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

type idempotencyErrorPayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// withIdempotency исполняет операцию под защитой idempotency-key.
// Без заголовка (или без репозитория) операция выполняется напрямую.
// Повторный запрос с тем же ключом и телом воспроизводит сохранённый
// ответ; тот же ключ с другим телом — конфликт.
func (s *Server) withIdempotency(c *gin.Context, run func() (int, any, error)) {
	key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
	if s.idemRepo == nil || key == "" {
		s.execute(c, run)
		return
	}

	requestHash, err := s.buildRequestHash(c)
	if err != nil {
		s.logger.WithError(err).Warn("failed to build idempotency request hash")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	record, err := s.idemRepo.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		s.replayIdempotency(c, err, record)
		return
	}

	status, body, runErr := run()
	if runErr != nil {
		s.cacheFailure(c, key, runErr)
		s.writeError(c, runErr)
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
		c.JSON(status, body)
		return
	}
	if err := s.idemRepo.MarkDone(key, payload, status); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}

	c.Data(status, "application/json; charset=utf-8", payload)
}

func (s *Server) execute(c *gin.Context, run func() (int, any, error)) {
	status, body, err := run()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(status, body)
}

func (s *Server) replayIdempotency(c *gin.Context, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency key is already used with different request payload"})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency cache is empty"})
				return
			}
			c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			c.JSON(http.StatusConflict, gin.H{"error": "request with the same idempotency key is already processing"})
		case domain.IdempotencyStatusFailed:
			s.replayFailure(c, record)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown idempotency record status"})
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) replayFailure(c *gin.Context, record domain.IdempotencyRecord) {
	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil && payload.Status >= http.StatusBadRequest {
			if payload.Message == "" {
				payload.Message = "previous request with the same idempotency key failed"
			}
			c.JSON(payload.Status, gin.H{"error": payload.Message})
			return
		}
	}

	if record.HTTPStatus >= http.StatusBadRequest {
		c.JSON(record.HTTPStatus, gin.H{"error": "previous request with the same idempotency key failed"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "previous request with the same idempotency key failed"})
}

func (s *Server) cacheFailure(c *gin.Context, key string, runErr error) {
	status := statusForError(runErr)

	payload, err := json.Marshal(idempotencyErrorPayload{
		Status:  status,
		Message: runErr.Error(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(key, payload, status); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

// statusForError повторяет таблицу writeError для кеширования отказов.
func statusForError(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// buildRequestHash связывает idempotency-key с методом, путём и телом
// запроса. Тело возвращается в запрос для последующего чтения handler-ом.
func (s *Server) buildRequestHash(c *gin.Context) (string, error) {
	var body []byte
	if c.Request.Body != nil {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		body = data
		c.Request.Body = io.NopCloser(strings.NewReader(string(data)))
	}

	payload := make([]byte, 0, len(c.Request.Method)+len(c.Request.URL.Path)+len(body)+2)
	payload = append(payload, c.Request.Method...)
	payload = append(payload, ':')
	payload = append(payload, c.Request.URL.Path...)
	payload = append(payload, ':')
	payload = append(payload, body...)

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
