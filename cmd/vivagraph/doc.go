// Copyright (c) VivaGraph Authors.
// Licensed under the MIT License.

/*
Package main 提供 VivaGraph 服务端程序入口。

# 概述

cmd/vivagraph 组装面试引擎并对外提供 HTTP API，同时包含数据库迁移、
健康检查和版本查询等子命令。配置来自 YAML、.env 与 VIVAGRAPH_ 环境变量。

# 核心类型

  - Server     — 构建模型、检索、持久化、检查点与引擎，管理 API 与 Metrics 双端口
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate（golang-migrate 或 gorm AutoMigrate）、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、RequestLogger、
    Metrics、CORS、JWTAuth（HS256）、RateLimiter（按用户或 IP）
  - 降级：数据库不可用时以无持久化模式运行，掌握度按 0 处理
  - 优雅关闭：信号 → 关闭 HTTP/Metrics → 关闭 Redis、数据库、Tracing
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
