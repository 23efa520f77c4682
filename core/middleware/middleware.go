package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"musobuddy/core/cache"
	"musobuddy/core/controller"
	"musobuddy/core/errors"
	"musobuddy/core/utils"
)

// ContextKeyUserID is where AuthMiddleware stores the authenticated user id.
const ContextKeyUserID = "user_id"

type Middleware struct {
	cache cache.Cache
}

func NewMiddleware(c cache.Cache) *Middleware {
	return &Middleware{cache: c}
}

// AuthMiddleware validates the Bearer token and rejects blacklisted tokens.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return c.JSON(http.StatusUnauthorized, controller.NewErrorResponse(
					http.StatusUnauthorized, errors.ErrMissingAuthorizationHeader, "missing authorization header"))
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				return c.JSON(http.StatusUnauthorized, controller.NewErrorResponse(
					http.StatusUnauthorized, errors.ErrInvalidTokenFormat, "authorization header must be a Bearer token"))
			}

			if m.cache != nil {
				blacklisted, err := m.cache.IsTokenBlacklisted(c.Request().Context(), token)
				if err == nil && blacklisted {
					return c.JSON(http.StatusUnauthorized, controller.NewErrorResponse(
						http.StatusUnauthorized, errors.ErrUnauthorized, "token is blacklisted"))
				}
			}

			tokenData, err := utils.ValidateAndParseToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, controller.NewErrorResponse(
					http.StatusUnauthorized, errors.ErrUnauthorized, "invalid token"))
			}

			c.Set(ContextKeyUserID, tokenData.UserID)
			return next(c)
		}
	}
}
