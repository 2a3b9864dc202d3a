package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
)

const ctxOwnerID = "owner_id"

var errNoSubject = errors.New("token has no subject")

// OwnerIDFromCtx returns the authenticated account id set by OwnerMiddleware.
func OwnerIDFromCtx(c echo.Context) (string, bool) {
	id, ok := c.Get(ctxOwnerID).(string)
	return id, ok && id != ""
}

// OwnerMiddleware authenticates dashboard requests with an HS256 bearer token
// issued by the auth backend. The token subject is the owner's UUID.
func OwnerMiddleware(secret []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			owner, err := ownerFromToken(parser, keyFunc, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(ctxOwnerID, owner)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func ownerFromToken(p *jwt.Parser, keyFunc jwt.Keyfunc, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := p.ParseWithClaims(raw, claims, keyFunc); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errNoSubject
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
