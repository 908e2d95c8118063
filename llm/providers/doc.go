// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package providers 存放 LLM Provider 的共享配置，具体实现位于子包。
package providers
