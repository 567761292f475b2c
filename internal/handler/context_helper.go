package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-idcard/internal/middleware"
	"github.com/noah-isme/student-idcard/internal/models"
	appErrors "github.com/noah-isme/student-idcard/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func studentID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "student id must be a positive integer")
	}
	return id, nil
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}
