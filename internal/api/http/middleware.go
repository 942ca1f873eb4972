package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "userID"

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// caller's id in the gin context.
func AuthMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "please authenticate"})
			return
		}

		userID, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "please authenticate"})
			return
		}

		ctx.Set(userIDKey, userID)
		ctx.Next()
	}
}

func currentUserID(ctx *gin.Context) uuid.UUID {
	v, _ := ctx.Get(userIDKey)
	id, _ := v.(uuid.UUID)
	return id
}
