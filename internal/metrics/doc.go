// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM、
面试工作流、上下文检索与数据库连接池。

# 概述

Collector 通过 promauto 注册到默认 Registry，按 namespace 隔离。
它同时实现 workflow.Observer，引擎在每个节点、每次检查点读写以及
会话开始与结束时回调。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：按提示词名称与模型统计请求数、耗时与 Token 用量。
  - 工作流指标：节点执行次数与耗时、检查点读写结果、会话生命周期、总分分布。
  - 检索指标：检索次数、耗时与返回段落数。
  - 数据库指标：连接池活跃/空闲连接数。
*/
package metrics
