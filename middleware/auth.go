// middleware/auth.go
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prosapient/datacop/config"
	logger "github.com/prosapient/datacop/logging"
)

// ActorClaims are the token claims the demo service cares about: who the
// caller is, which organization they belong to, and whether they hold the
// admin role.
type ActorClaims struct {
	jwt.StandardClaims
	OrgID string `json:"org_id"`
	Admin bool   `json:"admin"`
}

// AuthMiddleware verifies the bearer token and places the requesting actor
// into the gin context for the permission middleware downstream.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			logger.Warn("No Authorization token provided")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := parseToken(tokenString)
		if err != nil {
			logger.Error("Error parsing token", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("requestingUserID", claims.Subject)
		c.Set("requestingOrgID", claims.OrgID)
		c.Set("requestingAdmin", claims.Admin)

		c.Next()
	}
}

func parseToken(tokenString string) (*ActorClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	secret := config.GetString("auth.jwtSecret")
	if secret == "" {
		return nil, fmt.Errorf("auth.jwtSecret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ActorClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token or wrong claims type")
}
