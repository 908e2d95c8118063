// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供面试引擎使用的大语言模型接入层。

# Provider 抽象

核心接口是 [Provider]，包含同步补全、健康检查与名称。
具体实现位于 llm/providers 子包（OpenAI 兼容接口，基于 openai-go）。

# Generator

[Generator] 把 interview.Prompt 渲染为 system/user 两条消息并调用 Provider，
实现 interview.Model。模板使用 text/template 语法，变量缺失时渲染失败而不是
输出 "<no value>"。每次调用的耗时与 token 用量通过 [GenerationObserver] 上报。
*/
package llm
