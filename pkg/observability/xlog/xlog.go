package xlog

import (
	"context"
	"log/slog"
)

// Logger 日志接口。
//
// 所有方法都要求 context.Context，确保关联 ID 等上下文信息正确传播。
type Logger interface {
	// Debug 记录 Debug 级别日志
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)

	// Info 记录 Info 级别日志
	Info(ctx context.Context, msg string, attrs ...slog.Attr)

	// Warn 记录 Warn 级别日志
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)

	// Error 记录 Error 级别日志
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger。
	// 派生 logger 共享父级的 LevelVar，动态级别变更同步生效。
	With(attrs ...slog.Attr) Logger
}

// Leveler 级别控制接口。
// 与 Logger 分离，通过类型断言获取，避免污染核心接口。
type Leveler interface {
	// SetLevel 动态设置日志级别，运行时生效
	SetLevel(level Level)

	// GetLevel 获取当前日志级别
	GetLevel() Level
}

// Nop 返回丢弃所有日志的 Logger，用于测试与可选依赖的默认值。
func Nop() Logger {
	return &xlogger{
		handler:  discardHandler{},
		levelVar: new(slog.LevelVar),
	}
}

// discardHandler 丢弃所有记录。
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
