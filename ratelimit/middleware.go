package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware 创建 Gin 限流中间件
//
// 参数:
//   - limiter: 限流器实例
//   - keyFunc: 从请求中提取限流键的函数，nil 时默认使用客户端 IP
//   - limitFunc: 获取限流规则的函数
//
// 使用示例:
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddleware(limiter,
//	    nil, // 使用默认的 IP 作为 key
//	    func(c *gin.Context) ratelimit.Limit {
//	        return ratelimit.Limit{Limit: 100, Window: time.Minute}
//	    },
//	))
func GinMiddleware(
	limiter Limiter,
	keyFunc func(*gin.Context) string,
	limitFunc func(*gin.Context) Limit,
) gin.HandlerFunc {
	return ginMiddleware(limiter, keyFunc, limitFunc, false)
}

// GinMiddlewareWithHeaders 创建携带标准限流响应头的 Gin 中间件
//
// 每个响应都带上 X-RateLimit-Limit / X-RateLimit-Remaining /
// X-RateLimit-Reset 头，被拒绝的请求额外带 Retry-After（秒）
func GinMiddlewareWithHeaders(
	limiter Limiter,
	keyFunc func(*gin.Context) string,
	limitFunc func(*gin.Context) Limit,
) gin.HandlerFunc {
	return ginMiddleware(limiter, keyFunc, limitFunc, true)
}

func ginMiddleware(
	limiter Limiter,
	keyFunc func(*gin.Context) string,
	limitFunc func(*gin.Context) Limit,
	withHeaders bool,
) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string {
			return c.ClientIP()
		}
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			// 无法提取键时放行
			c.Next()
			return
		}

		limit := limitFunc(c)
		if !limit.valid() {
			// 无效的限流规则，放行
			c.Next()
			return
		}

		result, err := limiter.Check(c.Request.Context(), key, limit)
		if err != nil {
			// 仅参数错误会走到这里，放行避免影响业务
			c.Next()
			return
		}

		if withHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
		}

		if !result.Allowed {
			if withHeaders {
				retryAfter := int64(time.Until(result.Reset).Seconds() + 0.5)
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
