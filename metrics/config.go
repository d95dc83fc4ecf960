package metrics

// Config 指标组件配置
type Config struct {
	// Enabled 是否启用指标收集，false 时 New 返回 noop Meter
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 服务名，作为资源属性附加到所有指标
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Version 服务版本
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// Port Prometheus 抓取端口，0 表示不启动内置 HTTP 服务器
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Path Prometheus 抓取路径（默认 "/metrics"）
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// NewDevDefaultConfig 返回适合开发/测试环境的默认配置
// 不启动抓取服务器
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}
