// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为服务提供 OTLP gRPC 的 TracerProvider 与 MeterProvider。
// 关闭时使用 noop 实现，不连接任何外部服务。
package telemetry
