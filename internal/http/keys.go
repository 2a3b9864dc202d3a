package http

import (
	"errors"
	"net/http"

	"github.com/dani-ai/dani/internal/apikey"
	"github.com/dani-ai/dani/internal/http/middleware"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/repository"
	"github.com/dani-ai/dani/internal/service/keys"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type createKeyReq struct {
	Name         string `json:"name"`
	RequestLimit int64  `json:"request_limit"`
}

type renameKeyReq struct {
	Name string `json:"name"`
}

// keyView is a key as listed on the dashboard, secret value masked.
type keyView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	Usage        int64  `json:"usage"`
	RequestLimit int64  `json:"request_limit"`
}

func maskedView(k model.APIKey) keyView {
	return keyView{
		ID:           k.ID,
		Name:         k.Name,
		Value:        apikey.Mask(k.Value),
		Usage:        k.Usage,
		RequestLimit: k.RequestLimit,
	}
}

// keyError turns a key service error into the user-visible response; store
// failures all collapse into the same generic message.
func keyError(c echo.Context, err error, failure string) error {
	switch {
	case errors.Is(err, keys.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrKeyNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "api key not found"})
	default:
		logger.Log.Error(failure, zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": failure})
	}
}

func listKeysHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		list, err := svc.List(c.Request().Context(), owner)
		if err != nil {
			return keyError(c, err, "Failed to load API keys")
		}

		views := make([]keyView, 0, len(list))
		for _, k := range list {
			views = append(views, maskedView(k))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(views),
			"results": views,
		})
	}
}

func createKeyHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req createKeyReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		k, err := svc.Create(c.Request().Context(), owner, req.Name, req.RequestLimit)
		if err != nil {
			return keyError(c, err, "Failed to create API key")
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"message": "API key created successfully",
			"key":     k,
		})
	}
}

func renameKeyHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req renameKeyReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		if err := svc.Rename(c.Request().Context(), owner, c.Param("id"), req.Name); err != nil {
			return keyError(c, err, "Failed to update API key")
		}

		return c.JSON(http.StatusOK, map[string]string{"message": "API key updated successfully"})
	}
}

func deleteKeyHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		if err := svc.Delete(c.Request().Context(), owner, c.Param("id")); err != nil {
			return keyError(c, err, "Failed to delete API key")
		}

		return c.JSON(http.StatusOK, map[string]string{"message": "API key deleted successfully"})
	}
}

func revealKeyHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		k, err := svc.Reveal(c.Request().Context(), owner, c.Param("id"))
		if err != nil {
			return keyError(c, err, "Failed to load API key")
		}

		return c.JSON(http.StatusOK, map[string]string{"id": k.ID, "value": k.Value})
	}
}

func dashboardHandler(svc *keys.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, ok := middleware.OwnerIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		ov, err := svc.Overview(c.Request().Context(), owner)
		if err != nil {
			return keyError(c, err, "Failed to load overview")
		}

		return c.JSON(http.StatusOK, ov)
	}
}
