// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package openai 基于 openai-go 实现 llm.Provider 与 rag.Embedder，
// 适用于 OpenAI 及任何兼容 Chat Completions / Embeddings 接口的服务。
package openai
