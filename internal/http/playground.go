package http

import (
	"errors"
	"net/http"

	"github.com/dani-ai/dani/internal/github"
	"github.com/dani-ai/dani/internal/http/middleware"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/service/gate"
	"github.com/dani-ai/dani/internal/service/playground"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type playgroundReq struct {
	APIKey    string `json:"api_key"`
	GitHubURL string `json:"github_url"`
}

type summarizerReq struct {
	GitHubURL string `json:"githubUrl"`
}

const analysisCompleted = "Repository analysis completed"

// analysisError maps a playground failure to its response. Every error is
// terminal for the request.
func analysisError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, playground.ErrMissingFields):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please fill in all fields"})
	case errors.Is(err, gate.ErrInvalidKey):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid API key"})
	case errors.Is(err, gate.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
	case errors.Is(err, github.ErrInvalidURL):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid GitHub URL"})
	case errors.Is(err, github.ErrFetchFailed):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to fetch README"})
	default:
		logger.Log.Error("repository analysis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Request failed"})
	}
}

// playgroundHandler backs the dashboard's API playground form.
func playgroundHandler(svc *playground.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := middleware.OwnerIDFromCtx(c); !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req playgroundReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		res, err := svc.Submit(c.Request().Context(), req.APIKey, req.GitHubURL)
		if err != nil {
			return analysisError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message": analysisCompleted,
			"result":  res,
		})
	}
}

// summarizerHandler is the public, API-key gated endpoint. The key has
// already passed the gate check in APIKeyMiddleware.
func summarizerHandler(svc *playground.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, ok := middleware.APIKeyFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req summarizerReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.GitHubURL == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "githubUrl is required"})
		}

		res, err := svc.RunGated(c.Request().Context(), k, req.GitHubURL)
		if err != nil {
			return analysisError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message": analysisCompleted,
			"result":  res,
		})
	}
}
