// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 interview 定义口试面试的领域模型与各个工作流节点。

# 概述

Session 是一次面试的完整可序列化状态，工作流每一步都在它的副本上
读写。节点之间只通过 Session 交换数据，外部依赖通过端口注入：

  - Model：语言模型黑盒，按 Prompt 渲染变量并返回文本。
  - Retriever：按会话隔离的上下文检索。
  - Recorder / Registry：题目、回答、评分、自信度与掌握度的持久化。

# 节点

  - Policy：根据轮数、阶段与模式决定继续提问还是结束。
  - Examiner：检索上下文、结合策略提示生成下一道题。
  - ConfidenceAnalyzer：从回答文本推导犹豫次数、停顿与语速。
  - Scorer：解析模型评分输出，失败时记零分。
  - FeedbackWriter：汇总对话与分数生成最终反馈。
  - MemoryWriter：按本次总分更新主题掌握度。
*/
package interview
