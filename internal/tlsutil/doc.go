// Package tlsutil 集中管理出站连接的 TLS 设置：模型提供者、
// Pinecone REST 客户端与 Redis（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
