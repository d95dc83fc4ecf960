package breaker

import (
	"context"

	"google.golang.org/grpc"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 每个 Key 对应 Registry 中一个独立的熔断器，base 提供阈值等配置模板
//
// 参数:
//   - base: 配置模板，Name 字段被 KeyFunc 的结果覆盖；nil 时使用全默认值
//   - keyFunc: 熔断维度提取函数，nil 时按服务级别熔断
//
// 使用示例:
//
//	reg := breaker.NewRegistry(breaker.WithLogger(logger))
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(reg.UnaryClientInterceptor(nil, breaker.MethodLevelKey())),
//	)
func (r *Registry) UnaryClientInterceptor(base *Config, keyFunc KeyFunc) grpc.UnaryClientInterceptor {
	if keyFunc == nil {
		keyFunc = ServiceLevelKey()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		cfg := Config{}
		if base != nil {
			cfg = *base
		}
		cfg.Name = keyFunc(ctx, method, cc)

		brk, err := r.GetOrCreate(&cfg)
		if err != nil {
			// 配置异常时不拦截调用
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		_, err = brk.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, opts...)
		})
		return err
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 熔断保护覆盖建流阶段，流建立后的消息收发不再计入
func (r *Registry) StreamClientInterceptor(base *Config, keyFunc KeyFunc) grpc.StreamClientInterceptor {
	if keyFunc == nil {
		keyFunc = ServiceLevelKey()
	}

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		cfg := Config{}
		if base != nil {
			cfg = *base
		}
		cfg.Name = keyFunc(ctx, method, cc)

		brk, err := r.GetOrCreate(&cfg)
		if err != nil {
			return streamer(ctx, desc, cc, method, opts...)
		}

		result, err := brk.Execute(ctx, func(ctx context.Context) (any, error) {
			return streamer(ctx, desc, cc, method, opts...)
		})
		if err != nil {
			return nil, err
		}
		return result.(grpc.ClientStream), nil
	}
}
