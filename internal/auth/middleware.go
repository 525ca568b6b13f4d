package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName is the cookie holding the session token.
const CookieName = "token"

const contextKeyClaims = "claims"

// ClaimsFromContext returns the claims set by the guard. ok is false on unguarded routes.
func ClaimsFromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// RequireLogin guards HTML routes: a missing or invalid token redirects to /login.
func RequireLogin(tokens *Tokens) gin.HandlerFunc {
	return guard(tokens, false, func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	})
}

// RequireToken guards JSON routes: a missing or invalid token responds with 401.
// Besides the cookie it accepts an "Authorization: Bearer" header.
func RequireToken(tokens *Tokens) gin.HandlerFunc {
	return guard(tokens, true, func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
	})
}

// Identify attaches claims when the request carries a valid cookie and never rejects.
// Public pages use it to know who is looking.
func Identify(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := fromRequest(c, tokens, false); err == nil {
			c.Set(contextKeyClaims, claims)
		}
		c.Next()
	}
}

func guard(tokens *Tokens, allowHeader bool, deny gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := fromRequest(c, tokens, allowHeader)
		if err != nil {
			deny(c)
			return
		}
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func fromRequest(c *gin.Context, tokens *Tokens, allowHeader bool) (Claims, error) {
	raw, _ := c.Cookie(CookieName)
	if raw == "" && allowHeader {
		raw = bearerToken(c.GetHeader("Authorization"))
	}
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}
	return tokens.Verify(raw)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
