package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/api/handlers"
	"github.com/ahmadarif238/vivagraph-ai/config"
	"github.com/ahmadarif238/vivagraph-ai/internal/cache"
	"github.com/ahmadarif238/vivagraph-ai/internal/database"
	"github.com/ahmadarif238/vivagraph-ai/internal/metrics"
	"github.com/ahmadarif238/vivagraph-ai/internal/persistence"
	"github.com/ahmadarif238/vivagraph-ai/internal/server"
	"github.com/ahmadarif238/vivagraph-ai/internal/telemetry"
	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/llm"
	"github.com/ahmadarif238/vivagraph-ai/llm/circuitbreaker"
	"github.com/ahmadarif238/vivagraph-ai/llm/providers"
	"github.com/ahmadarif238/vivagraph-ai/llm/providers/openai"
	"github.com/ahmadarif238/vivagraph-ai/rag"
	"github.com/ahmadarif238/vivagraph-ai/workflow"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// poolStatsInterval 连接池指标上报间隔
const poolStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装引擎、存储与 HTTP 服务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	telemetry *telemetry.Providers
	db        *database.PoolManager
	store     *persistence.Store
	redis     *cache.Manager
	engine    *workflow.Engine
	service   *workflow.SessionService

	// 限流清理与连接池上报的生命周期
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// NewServer 按配置构建所有依赖。数据库不可用时降级为无持久化运行。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector("vivagraph", logger),
	}

	tp, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.telemetry = tp

	model, err := s.buildModel()
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	store, embedder := s.buildVectorStore(), s.buildEmbedder()
	retriever := s.buildRetriever(store, embedder)
	indexer := rag.NewIndexer(store, embedder, cfg.Interview.Indexing, logger)

	var (
		recorder interview.Recorder = interview.NopRecorder{}
		registry interview.Registry
		answers  workflow.AnswerRegistry
	)
	if ps := s.openPersistence(ctx); ps != nil {
		recorder, registry, answers = ps, ps, ps
		s.store = ps
	}

	checkpoints, err := s.buildCheckpointStore()
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	graph, err := workflow.NewInterviewGraph(workflow.Nodes{
		Policy:     interview.NewPolicy(model, cfg.Interview.Policy, logger),
		Examiner:   interview.NewExaminer(model, retriever, recorder, logger, interview.WithExaminerRetrievalK(cfg.Interview.ExaminerK)),
		Confidence: interview.NewConfidenceAnalyzer(recorder, logger),
		Scorer:     interview.NewScorer(model, retriever, recorder, logger, interview.WithScorerRetrievalK(cfg.Interview.ScorerK)),
		Feedback:   interview.NewFeedbackWriter(model, logger),
		Memory:     interview.NewMemoryWriter(recorder, logger),
	})
	if err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("build interview graph: %w", err)
	}

	opts := []workflow.EngineOption{
		workflow.WithObserver(s.collector),
		workflow.WithLogger(logger),
	}
	if answers != nil {
		opts = append(opts, workflow.WithAnswerRegistry(answers))
	}
	s.engine, err = workflow.NewEngine(graph, checkpoints, opts...)
	if err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	s.service = workflow.NewSessionService(s.engine, registry, recorder, indexer, logger)

	return s, nil
}

// =============================================================================
// 🔧 依赖构建
// =============================================================================

// buildModel 创建 OpenAI 兼容模型，按配置包裹熔断器
func (s *Server) buildModel() (*llm.Generator, error) {
	lc := s.cfg.LLM
	var provider llm.Provider = openai.NewProvider(providers.OpenAIConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  lc.APIKey,
			BaseURL: lc.BaseURL,
			Model:   lc.Model,
			Timeout: lc.Timeout,
		},
		Organization: lc.Organization,
		MaxRetries:   lc.MaxRetries,
	}, s.logger)

	if lc.CircuitBreaker.Enabled {
		provider = circuitbreaker.Wrap(provider,
			circuitbreaker.ConfigFromLLM(lc.CircuitBreaker.Threshold, lc.Timeout, lc.CircuitBreaker.ResetTimeout),
			s.logger)
	}

	return llm.NewGenerator(provider, s.logger,
		llm.WithModel(lc.Model),
		llm.WithMaxTokens(lc.MaxTokens),
		llm.WithGenerationObserver(func(prompt, model string, d time.Duration, usage llm.ChatUsage, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			s.collector.RecordLLMRequest(prompt, model, status, d, usage.PromptTokens, usage.CompletionTokens)
		}),
	), nil
}

func (s *Server) buildEmbedder() rag.Embedder {
	ec := s.cfg.Embedding
	if ec.Provider == "openai" {
		return openai.NewEmbedder(providers.EmbeddingConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				APIKey:  ec.APIKey,
				BaseURL: ec.BaseURL,
				Model:   ec.Model,
				Timeout: ec.Timeout,
			},
			Dimensions: ec.Dimensions,
			BatchSize:  ec.BatchSize,
		}, s.logger)
	}
	return rag.NewHashEmbedder(ec.Dimensions)
}

func (s *Server) buildVectorStore() rag.VectorStore {
	if s.cfg.Interview.VectorBackend == "pinecone" {
		return rag.NewPineconeStore(s.cfg.Pinecone, s.logger)
	}
	return rag.NewInMemoryVectorStore(s.logger)
}

func (s *Server) buildRetriever(store rag.VectorStore, embedder rag.Embedder) *rag.SessionRetriever {
	opts := []rag.RetrieverOption{
		rag.WithSearchObserver(func(_ string, returned int, d time.Duration, err error) {
			s.collector.RecordRetrieval(returned, d, err)
		}),
	}
	if enc := s.cfg.Interview.TokenEncoding; enc != "" {
		opts = append(opts, rag.WithTokenizer(rag.NewTiktokenTokenizer(enc, s.logger)))
	}
	return rag.NewSessionRetriever(store, embedder, s.cfg.Interview.Retrieval, s.logger, opts...)
}

// openPersistence 打开数据库；失败时返回 nil，服务以无持久化模式继续
func (s *Server) openPersistence(ctx context.Context) *persistence.Store {
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		s.logger.Error("database unavailable, running without persistence", zap.Error(err))
		return nil
	}
	store := persistence.NewStore(db.DB(), s.logger)
	if s.cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			s.logger.Error("auto migrate failed, running without persistence", zap.Error(err))
			_ = db.Close()
			return nil
		}
	}
	s.db = db
	return store
}

func (s *Server) buildCheckpointStore() (workflow.CheckpointStore, error) {
	cc := s.cfg.Checkpoint
	if cc.Backend != "redis" {
		return workflow.NewMemoryCheckpointStore(), nil
	}
	m, err := cache.NewManager(cache.ConfigFromRedis(s.cfg.Redis, cc.TTL), s.logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis checkpoint store: %w", err)
	}
	s.redis = m
	return workflow.NewRedisCheckpointStore(m, cc.KeyPrefix, cc.TTL, s.logger), nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动 API 与指标服务（非阻塞）
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.httpManager = server.NewManager(s.routes(ctx), server.ConfigFromServer(s.cfg.Server), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	mc := server.DefaultConfig()
	mc.Name = "metrics"
	mc.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	s.metricsManager = server.NewManager(metricsMux, mc, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	if s.db != nil {
		s.wg.Add(1)
		go s.reportPoolStats(ctx)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("persistence", s.db != nil),
		zap.String("checkpoint_backend", s.cfg.Checkpoint.Backend),
		zap.Bool("tracing", s.telemetry.Enabled()),
	)
	return nil
}

// routes 注册路由并构建中间件链
func (s *Server) routes(ctx context.Context) http.Handler {
	health := handlers.NewHealthHandler(s.logger, Version)
	if s.db != nil {
		health.RegisterCheck(handlers.NewPingCheck("database", s.db.Ping))
	}
	if s.redis != nil {
		health.RegisterCheck(handlers.NewPingCheck("redis", s.redis.Ping))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	sessions := handlers.NewSessionHandler(s.service, s.engine, s.cfg.Server.MaxUploadBytes, s.logger)
	if s.store != nil {
		sessions.WithTranscripts(s.store)
	}
	sessions.Register(mux)

	// JWT 在限流之前，限流才能按用户计数
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		JWTAuth(s.cfg.Server.JWTSecret, "/api/", s.logger),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
}

func (s *Server) reportPoolStats(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.db.GetStats()
			s.collector.RecordDBConnections(s.cfg.Database.Driver, st.OpenConnections, st.Idle)
		}
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞到 ctx 结束或任一服务器异常退出，然后优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) {
	var apiErrs, metricsErrs <-chan error
	if s.httpManager != nil {
		apiErrs = s.httpManager.Errors()
	}
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	case err := <-apiErrs:
		s.logger.Error("HTTP server failed", zap.Error(err))
	case err := <-metricsErrs:
		s.logger.Error("Metrics server failed", zap.Error(err))
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务与连接，可重复调用
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
	}

	var errs []error
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	s.wg.Wait()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown completed with errors", zap.Error(err))
		return
	}
	s.logger.Info("Graceful shutdown completed")
}
