// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 GORM 数据库并管理连接池。

# 概述

Open 按配置中的驱动名选择方言：postgres、mysql、sqlite（纯 Go，
github.com/glebarez/sqlite）与 sqlite3（cgo，gorm.io/driver/sqlite）。
SQLite 只允许一个写连接，Open 会把连接池收紧到 1。

GORM 日志通过 NewGormLogger 转发到 zap，慢查询以 Warn 级别输出。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB、Ping、Stats、
    Close 以及后台健康检查。
  - PoolConfig：最大打开、最大空闲、连接生命周期与健康检查间隔。
  - TransactionFunc：事务回调。

# 事务

WithTransaction 执行单次事务；WithTransactionRetry 对死锁、
序列化失败与 "database is locked" 按指数退避重试。
*/
package database
