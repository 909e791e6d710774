package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/perkflow/perkflow/pkg/logctx"
	"github.com/perkflow/perkflow/pkg/response"
)

// AuthMiddleware validates the bearer token and stores the subject as the
// request's user id (key: "userID", mirrored into the request context).
// Tokens are issued elsewhere; this service only verifies them.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		c.Set("userID", sub)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), sub))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		response.ErrorMsg[any](response.APIResponseCodeUnauthorized, msg, nil))
}

// UserID returns the authenticated user id for the request, or "".
func UserID(c *gin.Context) string {
	return c.GetString("userID")
}
