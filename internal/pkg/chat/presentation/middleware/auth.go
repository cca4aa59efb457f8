package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey holds the authenticated user id in the gin context.
const SubjectKey = "auth.subject"

var errMissingToken = errors.New("missing token")

// AuthMiddleware validates an HS256 bearer token and stores its subject.
// Websocket clients that cannot set headers pass the token as ?token=.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := ParseSubject(tokenFrom(c), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": "unauthorized", "message": err.Error()},
			})
			return
		}
		c.Set(SubjectKey, sub)
		c.Next()
	}
}

// Subject returns the authenticated user id, if any.
func Subject(c *gin.Context) (string, bool) {
	v, ok := c.Get(SubjectKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// ParseSubject verifies tokenStr and returns its sub claim.
func ParseSubject(tokenStr, secret string) (string, error) {
	if tokenStr == "" {
		return "", errMissingToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return strings.ToLower(sub), nil
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}
