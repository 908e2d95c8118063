// Copyright (c) VivaGraph Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 VivaGraph HTTP API 的请求处理器实现。

# 核心类型

  - SessionHandler   — 会话开始、回答、强制结束、快照与掌握度查询
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready, /version）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口，PingCheck 覆盖数据库与 Redis

# 主要能力

  - WriteError 接受任意 error，types.Error 按错误码映射 HTTP 状态，其余按 500 处理
  - DecodeJSONBody 1 MB 上限 + 严格模式；上传文档按 server.max_upload_bytes 限制
  - 文档只接受 UTF-8 纯文本，二进制内容返回 415
  - 就绪检查并发执行，任一失败返回 503
*/
package handlers
