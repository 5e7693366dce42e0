package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output 日志输出目标。
type Output string

const (
	// OutputStdout 输出到标准输出。
	OutputStdout Output = "stdout"
	// OutputStderr 输出到标准错误。
	OutputStderr Output = "stderr"
	// OutputFile 输出到轮转文件（lumberjack）。
	OutputFile Output = "file"
)

// FileOptions 文件输出的轮转配置。
type FileOptions struct {
	// Path 日志文件路径。
	Path string
	// MaxSizeMB 单文件上限（MB），默认 100。
	MaxSizeMB int
	// MaxBackups 保留的旧文件数量，默认 5。
	MaxBackups int
	// MaxAgeDays 旧文件保留天数，默认 30。
	MaxAgeDays int
	// Compress 是否压缩旧文件。
	Compress bool
}

// Builder 构建 Logger。
type Builder struct {
	level   Level
	output  Output
	file    FileOptions
	service string
	writer  io.Writer // 测试注入
}

// NewBuilder 创建默认配置的 Builder：Info 级别，JSON 输出到 stdout。
func NewBuilder() *Builder {
	return &Builder{
		level:  LevelInfo,
		output: OutputStdout,
	}
}

// WithLevel 设置初始日志级别。
func (b *Builder) WithLevel(level Level) *Builder {
	b.level = level
	return b
}

// WithOutput 设置输出目标。
func (b *Builder) WithOutput(output Output) *Builder {
	b.output = output
	return b
}

// WithFile 设置文件输出及轮转参数，隐含 WithOutput(OutputFile)。
func (b *Builder) WithFile(opts FileOptions) *Builder {
	b.output = OutputFile
	b.file = opts
	return b
}

// WithService 设置 service 根属性，出现在每条日志中。
func (b *Builder) WithService(name string) *Builder {
	b.service = name
	return b
}

// WithWriter 直接指定输出 Writer，优先于 WithOutput。用于测试。
func (b *Builder) WithWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// Build 构建 Logger。
// 返回的 Logger 同时实现 Leveler，可通过类型断言动态调级。
func (b *Builder) Build() (Logger, error) {
	w, err := b.buildWriter()
	if err != nil {
		return nil, err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(b.level))

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelVar,
	})
	handler = newEnrichHandler(handler)
	if b.service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", b.service)})
	}

	return &xlogger{handler: handler, levelVar: levelVar}, nil
}

func (b *Builder) buildWriter() (io.Writer, error) {
	if b.writer != nil {
		return b.writer, nil
	}
	switch b.output {
	case OutputStdout, "":
		return os.Stdout, nil
	case OutputStderr:
		return os.Stderr, nil
	case OutputFile:
		if b.file.Path == "" {
			return nil, fmt.Errorf("%w: file output requires a path", ErrInvalidOutput)
		}
		lj := &lumberjack.Logger{
			Filename:   b.file.Path,
			MaxSize:    b.file.MaxSizeMB,
			MaxBackups: b.file.MaxBackups,
			MaxAge:     b.file.MaxAgeDays,
			Compress:   b.file.Compress,
		}
		if lj.MaxSize <= 0 {
			lj.MaxSize = 100
		}
		if lj.MaxBackups <= 0 {
			lj.MaxBackups = 5
		}
		if lj.MaxAge <= 0 {
			lj.MaxAge = 30
		}
		return lj, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutput, b.output)
	}
}
