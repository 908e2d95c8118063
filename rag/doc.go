// Copyright 2025-2026 VivaGraph Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供面试上下文的检索与文档入库。

所有文档在入库时携带 session_id 元数据，检索时只返回当前会话的文档，
避免不同考生上传的材料互相污染。

# 核心接口/类型

  - VectorStore — 向量数据库统一接口（AddDocuments / Search / DeleteDocuments / Count），
    Search 支持元数据等值过滤
  - InMemoryVectorStore — 内存实现，用于测试与单机部署
  - PineconeStore — Pinecone REST 实现，过滤条件转换为 $eq 表达式
  - Embedder — 文本向量化接口；HashEmbedder 为离线实现
  - SessionRetriever — 会话隔离检索：过量召回、内容哈希去重、排序截断、token 预算
  - RecursiveSplitter — 递归字符分块（1500 字符 / 50 重叠）
  - Indexer — 切分、去重、批量向量化（errgroup 并发）并写入向量库
  - Tokenizer — token 计数，TiktokenTokenizer 在编码不可用时回退到估算

# 使用示例

	store := rag.NewInMemoryVectorStore(logger)
	indexer := rag.NewIndexer(store, embedder, rag.DefaultIndexerConfig(), logger)
	_, _ = indexer.IndexText(ctx, text, map[string]any{rag.MetadataSessionID: id})

	retriever := rag.NewSessionRetriever(store, embedder, rag.DefaultRetrieverConfig(), logger)
	passages, _ := retriever.Search(ctx, "what is paging", 5, id)
*/
package rag
