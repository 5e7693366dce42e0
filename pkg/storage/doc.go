// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: 双层缓存（本地 LRU + Redis），带分布式写锁与版本失效协议
//
// 设计原则：
//   - 提供统一的接口抽象，支持多种存储后端
//   - 出站调用统一经由弹性执行器（重试、熔断、超时）
//   - 读路径故障降级为未命中，不向业务层传播
package storage
