// Copyright (c) VivaGraph Authors.
// Licensed under the MIT License.

/*
Package workflow 提供面试会话的工作流引擎。

# 概述

面试流程是一张固定的节点图：

	policy -> examiner -> [挂起] confidence -> scorer -> policy
	policy (已完成) -> feedback -> [提交] memory -> End

Engine 在会话副本上逐个执行节点，遇到 confidence 前的挂起点时保存检查点
并返回题目；Resume 追加候选人回答后从挂起点继续。节点失败时检查点保持不变，
重试安全。memory 之前保存 committing 检查点，终态写入失败后的重试只补跑 memory。
已结束的会话再次 Resume 返回缓存的结果。

检查点按 Version 比较交换。多个进程共享 Redis 时，同一会话只有一个写入者成功，
另一个得到可重试的 SESSION_BUSY。

# 核心类型

  - Graph / GraphBuilder  — 节点、无条件边、条件边与挂起点
  - Engine                — Start / Resume / ForceEnd / History
  - CheckpointStore       — MemoryCheckpointStore 与基于 Redis 的 RedisCheckpointStore
  - SessionLocks          — 按会话 ID 串行化，空闲时释放
  - ExecutionHistoryStore — 每次执行经过的节点与耗时
  - SessionService        — 资料入库、用户绑定、掌握度读取与引擎调用的组合
*/
package workflow
