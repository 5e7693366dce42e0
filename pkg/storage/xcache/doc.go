// Package xcache 提供两级缓存：进程内 LRU + Redis 远端层。
//
// # 读一致性模式
//
// 每次读可指定一致性模式：
//
//   - ModeEventual：先查本地层，未命中再查远端层。本地层只存放
//     构造时标记了 LocalTTL 的静态条目，可能短暂读到旧值。
//   - ModeStrong：跳过本地层，直接读远端层。
//   - ModeSerializable：先等待 key 上的写锁释放，再读远端层，
//     保证读不会越过进行中的写。
//
// # 版本协议
//
// 每个 key 伴随一个版本号（key + "#ver"）。失效操作删除值并递增版本，
// SetIfVersion 只在版本未变时写入。读到旧版本后计算出的结果不会覆盖
// 并发失效后的状态。
//
// # 写锁
//
// Lock 基于 SET NX EX 实现，锁值为随机 owner token，释放用 Lua 脚本
// CAS（GET == token 时 DEL），保证只释放自己持有的锁。等待者通过
// EXISTS 轮询，等待总时长受 LockWaitTimeout 约束。
//
// # 降级
//
// 远端层故障一律降级为未命中（读路径）或记录告警（写路径），缓存
// 不可用不阻断业务。所有远端操作经由 xexec 的 KindCache 策略执行。
package xcache
