package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/logging"
)

// RateLimit ограничивает число запросов с одного IP в минуту через
// Redis INCR+EXPIRE. При nil-клиенте лимит отключён.
func RateLimit(rdb *redis.Client, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || perMinute <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate:%s", c.ClientIP())
		count, err := rdb.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis недоступен — пропускаем, лимит не критичен.
			logging.API.Warn("rate limit: Redis недоступен", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(c.Request.Context(), key, time.Minute)
		}
		if count > int64(perMinute) {
			appErr := apperr.RateLimit()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": appErr.Code, "message": appErr.Message},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
