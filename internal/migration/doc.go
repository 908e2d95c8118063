// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理面试数据库的版本化 Schema，基于 golang-migrate。

# 概述

SQL 迁移文件按方言内嵌在 migrations/{postgres,mysql,sqlite} 下，
建立 users、sessions、questions、answers、evaluations、
confidence_metrics 与 topic_mastery 七张表。SQLite 连接使用纯 Go 驱动，
sqlite 与 sqlite3 两种配置共用同一套迁移。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、DownAll、Steps、Goto、Force、
    Version、Status、Info、Close。
  - CLI：供 `vivagraph migrate` 使用，Run 按子命令分发并格式化输出。
  - NewMigratorFromDatabaseConfig：从应用配置构造迁移器。
*/
package migration
