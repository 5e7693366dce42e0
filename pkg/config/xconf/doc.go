// Package xconf 提供 rxgate 的配置加载：基于 koanf 的薄封装。
//
// 支持 YAML/JSON 文件与原始字节（K8s ConfigMap 注入场景），
// 按路径反序列化到类型化结构体，并通过 fsnotify 监视文件变更热加载。
//
// rxgate 中热加载只应用于安全可变的配置（当前为日志级别）；
// 缓存、弹性、准入等运行时参数在启动时固化。
package xconf
