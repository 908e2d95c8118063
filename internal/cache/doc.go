// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装 go-redis 客户端，为检查点存储提供键值读写。

Manager 负责连接生命周期：初始化时 Ping、后台健康检查、可选 TLS
（internal/tlsutil）与幂等关闭。读写接口包括 Get/Set、GetJSON/SetJSON、
Delete、Exists、Expire 与基于 SCAN 的 Keys。键不存在时返回 ErrCacheMiss。
*/
package cache
