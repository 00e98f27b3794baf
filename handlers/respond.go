// Package handlers — HTTP-обработчики REST API и webhook'ов.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/logging"
)

// fail переводит ошибку приложения в HTTP-ответ со стабильным кодом.
// Неклассифицированные ошибки прячутся за 500.
func fail(c *gin.Context, err error) {
	if appErr, ok := apperr.As(err); ok {
		c.JSON(statusFor(appErr.Code), gin.H{
			"error": gin.H{"code": appErr.Code, "message": appErr.Message},
		})
		return
	}
	logging.API.Error("необработанная ошибка", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "INTERNAL_ERROR", "message": "Serverda xatolik yuz berdi"},
	})
}

func statusFor(code string) int {
	switch code {
	case apperr.CodeAuthentication:
		return http.StatusUnauthorized
	case apperr.CodeAuthorization:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeRateLimit:
		return http.StatusTooManyRequests
	case apperr.CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
