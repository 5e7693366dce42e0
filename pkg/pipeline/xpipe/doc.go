// Package xpipe 提供类型化的请求管道：日志 → 校验 → 缓存 → 处理器。
//
// 查询与命令共用一条管道，行为由请求描述符驱动：
//
//   - 查询可声明缓存条目（key、一致性模式、TTL）。未命中时经
//     singleflight 合并回源，回填采用版本校验写入，读到旧版本计算
//     出的结果不会覆盖并发失效后的状态。
//   - 命令声明要失效的缓存 key 与一致性模式。Eventual 不加锁，
//     只做提交后失效；Strong/Serializable 先对这些 key 加写锁。
//     处理器成功后才执行失效；处理器失败时缓存原样保留。失效与
//     解锁使用脱离请求取消链的写安全 context，客户端断开不会留下
//     半套状态。
//
// 负载校验基于 go-playground/validator，校验失败转换为带逐字段
// 错误表的校验类失败。
package xpipe
