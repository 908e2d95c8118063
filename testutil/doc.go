// Copyright 2026 VivaGraph Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 VivaGraph 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup 防止泄漏
  - 会话构造: NewSession / History / SessionWithHistory
  - 异步断言: AssertEventuallyTrue / WaitFor
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockModel（语言模型）、MockRetriever（上下文检索）、
    MockRecorder（持久化端口），均支持 Builder 模式与错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	model := mocks.NewMockModel().WithResponse("strategy", "ask_new_question")
	s := testutil.SessionWithHistory("s-1", interview.ModeStandard, 4)
*/
package testutil
