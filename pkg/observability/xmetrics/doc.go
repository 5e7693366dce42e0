// Package xmetrics 提供 rxgate 的统一观测抽象。
//
// 管道、缓存、弹性执行器、准入控制都通过 Observer 上报观测跨度，
// 不直接依赖具体观测后端。默认实现基于 OpenTelemetry（trace + metric），
// 测试与可选场景使用 NoopObserver。
//
// 约定的指标：
//   - rxgate.operation.total    操作计数（component/operation/status 维度）
//   - rxgate.operation.duration 操作耗时直方图（秒）
package xmetrics
