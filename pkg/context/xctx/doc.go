// Package xctx 定义 rxgate 的请求上下文载体。
//
// 每个请求持有一份上下文载体：取消句柄（context 本身）、关联 ID、
// 已认证身份。管道行为之间通过它传递信息，请求之间没有共享可变状态。
//
// # 关联 ID
//
// 入站请求的 X-Correlation-Id 头若存在则沿用，否则生成 UUID。
// 关联 ID 出现在每条日志和每个错误响应的 traceId 字段中。
//
// # 写安全上下文
//
// 非幂等写操作必须与请求级取消解耦：客户端断连不应使已开始的写
// 操作留下半成品状态。Detach 返回保留 Value 链但不继承取消信号的
// context，管道在进入命令处理器前换用它。
package xctx
