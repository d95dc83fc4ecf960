package clog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NamespaceKey 是日志中命名空间的字段名，用于标识组件
const NamespaceKey = "namespace"

// slogLogger Logger 的 slog 实现（非导出）
type slogLogger struct {
	handler   slog.Handler
	levelVar  *slog.LevelVar
	namespace []string
	fields    []Field
}

// newLogger 创建 Logger 实例（内部函数）
func newLogger(config *Config, opts *options) (Logger, error) {
	writer, err := resolveOutput(config.Output)
	if err != nil {
		return nil, err
	}

	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.Level(level))

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return &slogLogger{
		handler:   handler,
		levelVar:  levelVar,
		namespace: opts.namespaceParts,
	}, nil
}

// resolveOutput 将输出目标字符串解析为 io.Writer
func resolveOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return f, nil
	}
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}

	attrs := make([]Field, 0, len(l.fields)+len(fields)+1)
	if len(l.namespace) > 0 {
		attrs = append(attrs, slog.String(NamespaceKey, strings.Join(l.namespace, ".")))
	}
	attrs = append(attrs, l.fields...)
	attrs = append(attrs, fields...)

	logger := slog.New(l.handler)
	logger.LogAttrs(ctx, level, msg, attrs...)
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

// Fatal 记录日志后退出进程
func (l *slogLogger) Fatal(msg string, fields ...Field) {
	l.log(slog.Level(FatalLevel), msg, fields)
	os.Exit(1)
}

// With 创建一个带有预设字段的子 Logger
func (l *slogLogger) With(fields ...Field) Logger {
	child := l.clone()
	child.fields = append(child.fields, fields...)
	return child
}

// WithNamespace 创建一个扩展命名空间的子 Logger
func (l *slogLogger) WithNamespace(parts ...string) Logger {
	child := l.clone()
	child.namespace = append(child.namespace, parts...)
	return child
}

// SetLevel 动态调整日志级别
func (l *slogLogger) SetLevel(level Level) error {
	l.levelVar.Set(slog.Level(level))
	return nil
}

// clone 复制 Logger，字段和命名空间切片做深拷贝避免共享底层数组
func (l *slogLogger) clone() *slogLogger {
	child := &slogLogger{
		handler:   l.handler,
		levelVar:  l.levelVar,
		namespace: make([]string, len(l.namespace)),
		fields:    make([]Field, len(l.fields)),
	}
	copy(child.namespace, l.namespace)
	copy(child.fields, l.fields)
	return child
}
