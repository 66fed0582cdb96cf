// Package main 检索服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kb-retrieval-api/internal/application/search"
	"kb-retrieval-api/internal/config"
	"kb-retrieval-api/internal/infrastructure/embedding"
	"kb-retrieval-api/internal/infrastructure/llm"
	"kb-retrieval-api/internal/infrastructure/persistence/milvus"
	redisinfra "kb-retrieval-api/internal/infrastructure/persistence/redis"
	"kb-retrieval-api/internal/interfaces/http/handler"
	"kb-retrieval-api/internal/interfaces/http/router"
	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting search-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Redis
	redisClient, err := redisinfra.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	cache := redisinfra.NewCache(redisClient)
	queryCache := redisinfra.NewSearchQueryCache(cache,
		cfg.Search.EmbeddingCacheTTL,
		cfg.Search.Intent.CacheTTL,
	)

	// Milvus
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	milvusRepo := milvus.NewRepository(milvusClient)
	vectorStore := milvus.NewSearchVectorStore(milvusRepo)

	if err := vectorStore.EnsureKnowledgeSegmentsCollection(ctx); err != nil {
		// 集合不可用时检索层会走降级链路，不阻塞启动。
		log.Warn("failed to ensure knowledge segments collection", "error", err)
	}

	// Embedding 与 LLM
	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init eino embedder", err)
	}

	llmFactory := llm.NewEinoFactory(cfg)
	completer := llm.NewCompleter(llmFactory, cfg.LLM.DefaultProvider)

	// 检索应用层
	opts := search.Options{
		EmbeddingModel:      cfg.Embedding.Model,
		DefaultLimit:        cfg.Search.DefaultLimit,
		MaxLimit:            cfg.Search.MaxLimit,
		DefaultThreshold:    cfg.Search.DefaultThreshold,
		KeywordBoost:        cfg.Search.KeywordBoost,
		KeywordWeight:       cfg.Search.KeywordWeight,
		SemanticWeight:      cfg.Search.SemanticWeight,
		RerankBlendWeight:   cfg.Search.RerankBlendWeight,
		IntentMinConfidence: cfg.Search.Intent.MinConfidence,
		PerKBTimeout:        cfg.Search.Intelligent.PerKBTimeout,
	}

	reranker := search.NewReranker(completer, opts)
	semantic := search.NewSemanticSearcher(embedder, vectorStore, reranker, queryCache, opts)
	lexical := search.NewLexicalSearcher(semantic, completer, opts)
	hybrid := search.NewHybridSearcher(semantic, lexical, reranker, opts)
	structured := search.NewStructuredSearcher(semantic, opts)
	detector := search.NewIntentDetector(completer, queryCache, opts)
	intelligent := search.NewIntelligentSearcher(semantic, lexical, hybrid, detector, opts)
	indexer := search.NewIndexer(embedder, vectorStore, cfg.Embedding.BatchSize)

	// HTTP 层
	handlers := router.Handlers{
		Health:  handler.NewHealthHandler(redisClient, milvusClient),
		Search:  handler.NewSearchHandler(semantic, lexical, hybrid, structured, intelligent, reranker, cfg.Search.DefaultLimit),
		Segment: handler.NewSegmentHandler(indexer),
	}
	r := router.New(cfg, handlers, redisinfra.NewRateLimiter(redisClient))

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
