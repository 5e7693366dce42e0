// Package xadmit 提供基于实时压力采样的自适应准入控制。
//
// 控制器后台周期采样进程压力（堆负载、调度器利用率、排队深度），
// 用 atomic.Pointer 发布最新样本；请求路径上的 Decide 只读指针，
// 不产生任何采样开销。
//
// 任一指标越过阈值即进入拒绝状态，新请求收到携带 Retry-After 的
// 拒绝决定；压力回落后自动恢复放行。优雅停机开始后无条件拒绝。
//
// 状态翻转只在边沿各记录一次日志，持续过载不会刷屏。
package xadmit
