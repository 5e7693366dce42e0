// Package xexec 提供出站调用的弹性执行器：重试 + 熔断 + 超时。
//
// # 依赖类别
//
// 每类出站依赖（主存储 / 缓存）持有独立的策略与熔断器状态：
//
//	ex := xexec.New(xexec.WithLogger(logger))
//	err := ex.Do(ctx, xexec.KindPrimaryStore, "orders.insert", func(ctx context.Context) error {
//	    return coll.InsertOne(ctx, doc)
//	})
//
// # 瞬时分类
//
// 重试只作用于瞬时故障。后端适配器用 Categorize 给底层错误标注类别名
// （如 "connection"、"execution-timeout"、"server-busy"），命中分类表的
// 归入 KindTransient，其余归入 KindPermanentBackend 且不重试。
//
// # 熔断器
//
// 基于 sony/gobreaker/v2 的滑动窗口：窗口内完成数达到 MinThroughput 且
// 失败率达到 FailureRatio 时跳闸；Open 持续 OpenDuration 后进入 HalfOpen，
// 放行一个探测请求，成功关闭、失败重新打开。业务性失败（NotFound、
// Validation、Conflict）不计入熔断统计。
//
// # 幂等性约定
//
// op 必须是重试幂等的；非幂等写操作的调用点应使用 WithPolicy 将该类别的
// MaxAttempts 设为 1。
package xexec
