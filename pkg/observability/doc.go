// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别与文件轮转
//   - xmetrics: 统一可观测性接口（指标、追踪），基于 OpenTelemetry
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取关联信息注入日志
//   - 核心代码只依赖接口，观测后端在装配期注入
package observability
