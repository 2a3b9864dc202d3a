package middleware

import (
	"net/http"
	"strings"

	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/service/gate"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey = "X-API-Key"

	ctxAPIKey   = "api_key"
	ctxAPIKeyID = "api_key_id"
)

// APIKeyFromCtx extracts the key record set by APIKeyMiddleware.
func APIKeyFromCtx(c echo.Context) (model.APIKey, bool) {
	k, ok := c.Get(ctxAPIKey).(model.APIKey)
	return k, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header and the
// usage gate. Unknown keys get 401, exhausted keys 429. On success the key
// record is stored in the context. The check consumes nothing; the handler's
// gated call decides again and counts the use.
func APIKeyMiddleware(g *gate.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := strings.TrimSpace(c.Request().Header.Get(HeaderAPIKey))
			if value == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			k, d, err := g.Check(c.Request().Context(), value)
			if err != nil {
				logger.Log.Error("gate check failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			switch d {
			case gate.DecisionInvalid:
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			case gate.DecisionRateLimited:
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}
			c.Set(ctxAPIKey, k)
			c.Set(ctxAPIKeyID, k.ID)
			return next(c)
		}
	}
}
