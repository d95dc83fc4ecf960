// Package connector 为 Aegis 提供统一的连接管理能力。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 健康检查：按需检查连接状态
//   - 并发安全：所有公开方法均为并发安全
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 基本使用：
//
//	cfg := &connector.RedisConfig{
//		Addr: "127.0.0.1:6379",
//		DB:   0,
//	}
//	conn, err := connector.NewRedis(cfg, connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	// 建立连接（幂等，可多次调用）
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//
//	client := conn.GetClient()
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期。组件（如 ratelimit）仅借用
//	Connector，不应调用 Close()。
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connector 定义所有连接器的通用行为。
type Connector interface {
	// Connect 建立连接。
	//
	// 此方法是幂等的，可安全多次调用。连接过程阻塞直到成功或失败。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。幂等。
	Close() error

	// HealthCheck 主动检查连接健康状态。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态（不产生 I/O）。
	IsHealthy() bool

	// Name 返回连接器名称。
	Name() string
}

// RedisConnector Redis 连接器接口
type RedisConnector interface {
	Connector

	// GetClient 返回 Redis 客户端
	GetClient() *redis.Client
}
