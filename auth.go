package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// mintSessionToken issues the bearer token that ties a client to its
// workspace. The only claim that matters is sid.
func mintSessionToken(sid string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sid,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(jwtSecret)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		sid, _ := claims["sid"].(string)
		if sid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		c.Set("sid", sid)
		c.Next()
	}
}

// sessionFromContext resolves the session named by the verified token. A
// valid token whose session has expired gets 410, not 401.
func (s *server) sessionFromContext(c *gin.Context) (*session, bool) {
	sidVal, _ := c.Get("sid")
	sid, _ := sidVal.(string)
	if sid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "context missing session"})
		return nil, false
	}
	sess, ok := s.sessions.get(sid)
	if !ok {
		c.JSON(http.StatusGone, gin.H{"error": "session expired or closed"})
		return nil, false
	}
	return sess, true
}
