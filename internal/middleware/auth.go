package middleware

import (
	"strings"

	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/response"
	"anoa.com/anomologita/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey       = "claims"
	QueryTokenParam = "access_token"
)

type AuthMiddleware struct {
	issuer *token.Issuer
}

func NewAuthMiddleware(issuer *token.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// RequireAuth accepts a bearer token from the Authorization header only.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.authenticate(false)
}

// RequireStreamAuth also accepts the token as a query parameter, since
// browsers cannot set headers on a websocket handshake.
func (m *AuthMiddleware) RequireStreamAuth() gin.HandlerFunc {
	return m.authenticate(true)
}

func (m *AuthMiddleware) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" && allowQuery {
			tokenString = c.Query(QueryTokenParam)
		}

		if tokenString == "" {
			response.ResponseError(c, apperror.Unauthorized("authorization required"))
			c.Abort()
			return
		}

		claims, err := m.issuer.ParseAccessToken(tokenString)
		if err != nil {
			response.ResponseError(c, apperror.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(response.UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireStudent must run after one of the authenticating middlewares.
func (m *AuthMiddleware) RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.ResponseError(c, apperror.Unauthorized("user not authenticated"))
			c.Abort()
			return
		}

		if !claims.IsStudent() {
			response.ResponseError(c, apperror.Forbidden("student access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.ResponseError(c, apperror.Unauthorized("user not authenticated"))
			c.Abort()
			return
		}

		if !claims.IsAdmin() {
			response.ResponseError(c, apperror.Forbidden("admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func GetClaims(c *gin.Context) (*token.Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
