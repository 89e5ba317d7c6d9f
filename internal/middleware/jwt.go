package middleware // reusable HTTP middleware for the booking API

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-reconciler/internal/identity"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and makes its subject available as the current user.  The secret must
// match the one used when issuing tokens.
//
// The numeric user id is stored twice: on the Echo context under
// "user_id" for other middleware, and on the request context through
// identity.ContextWithUserID so the booking service can resolve it
// without knowing about HTTP.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signatures are accepted; anything else is rejected
			// before the secret is handed out.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := subjectUserID(claims["sub"])
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}

			c.Set("user_id", uid)
			c.Set("role", claims["role"])
			req := c.Request()
			c.SetRequest(req.WithContext(identity.ContextWithUserID(req.Context(), uid)))
			return next(c)
		}
	}
}

// subjectUserID converts the sub claim into a user id.  Tokens minted by
// utils.NewAccessToken carry a decimal string; older ones a JSON number.
func subjectUserID(v interface{}) (uint64, bool) {
	switch s := v.(type) {
	case string:
		n, err := strconv.ParseUint(s, 10, 64)
		return n, err == nil && n > 0
	case float64:
		if s <= 0 || s != float64(uint64(s)) {
			return 0, false
		}
		return uint64(s), true
	default:
		return 0, false
	}
}
