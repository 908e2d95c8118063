// Copyright (c) VivaGraph Authors.
// Licensed under the MIT License.

/*
Package types 提供 VivaGraph 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 interview、workflow、llm、
api 等上层模块提供统一的错误码与 Context 传播工具，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - SESSION_NOT_FOUND / MODEL_CALL_FAILURE / SCORE_PARSE_FAILURE / PERSISTENCE_FAILURE

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithUserID / WithSessionID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 常用错误构造：NewSessionNotFoundError / NewModelCallError / NewInvalidRequestError
*/
package types
