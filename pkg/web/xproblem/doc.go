// Package xproblem 把失败类别映射为 RFC 7807 problem-details 响应。
//
// 映射是双向的：StatusFor 把 xfault.Kind 映射到 HTTP 状态码，
// KindForStatus 把状态码还原为类别（网关下游消费本服务时用）。
// 校验失败附带逐字段错误表，瞬时类失败附带 Retry-After 头，
// traceId 取请求的关联 ID。
package xproblem
