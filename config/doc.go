// Package config 提供 VivaGraph 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → .env 文件 → 环境变量 的顺序叠加，
// 环境变量名由 env 标签逐级拼接（例如 VIVAGRAPH_DATABASE_DRIVER）。
package config
