// Package xfault 定义 rxgate 全局统一的失败分类（FailureKind）。
//
// # 设计理念
//
// 内部边界上的错误是值而非异常：每个子系统（管道、缓存、弹性执行器、
// 准入控制）都用 Kind 标注失败类别，HTTP 适配层据此映射状态码。
//
//   - Kind 是封闭的枚举（和类型），新增类别必须同步更新 xproblem 的映射表
//   - Error 携带 Kind + 可选的字段错误表（仅 Validation）+ 原因链
//   - KindOf 从任意 error 提取类别，context 超时/取消归入 KindTimeout
//
// # 重试语义
//
// 只有 KindTransient 是可重试的，xexec 的重试策略依赖 IsTransient 判断。
package xfault
