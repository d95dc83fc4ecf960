package clog

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	namespaceParts  []string
	namespaceJoiner string
}

// applyOptions 应用所有选项并返回最终配置
func applyOptions(opts ...Option) *options {
	o := &options{
		namespaceJoiner: ".",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithNamespace 设置初始命名空间
//
// 多个部分会以 "." 连接，例如 WithNamespace("aegis", "breaker")
// 产生命名空间 "aegis.breaker"。
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}
