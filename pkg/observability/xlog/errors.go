package xlog

import "errors"

var (
	// ErrInvalidLevel 表示无法解析的日志级别字符串。
	ErrInvalidLevel = errors.New("xlog: invalid level")

	// ErrInvalidOutput 表示无法识别的输出目标配置。
	ErrInvalidOutput = errors.New("xlog: invalid output")
)
