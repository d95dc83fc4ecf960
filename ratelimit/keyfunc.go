package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey 从 HTTP 请求中提取客户端标识作为限流键
//
// 提取顺序：
//  1. X-Forwarded-For 的第一个地址（最初的客户端）
//  2. X-Real-IP
//  3. RemoteAddr（剥离端口）
//
// 注意：转发头可以被客户端伪造，仅在入口网关已规范化转发头的
// 部署中可信。
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}

	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ScopedKey 构造带作用域前缀的限流键
// 用于区分不同维度的限流（如 "login:1.2.3.4" 与 "api:1.2.3.4"）
func ScopedKey(scope, id string) string {
	return scope + ":" + id
}
