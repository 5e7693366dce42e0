// Package xlog 提供 rxgate 的结构化日志：基于 log/slog 的薄封装。
//
// # 设计理念
//
//   - 强制 context 传递：每条日志自动携带 xctx 中的关联 ID 与身份
//   - 方法签名只接受 slog.Attr，避免隐式 key-value 转换
//   - 动态级别：LevelVar 支持运行时调整（配合 xconf 热加载）
//   - 输出到 stdout（JSON）或经 lumberjack 轮转的文件
//
// # 快速开始
//
//	logger, err := xlog.NewBuilder().WithLevel(xlog.LevelInfo).Build()
//	logger.Info(ctx, "order created", slog.String("order_id", id))
package xlog
