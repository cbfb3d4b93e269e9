// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"askdocs-go/internal/chunker"
	"askdocs-go/internal/config"
	"askdocs-go/internal/extractor"
	"askdocs-go/internal/handler"
	"askdocs-go/internal/middleware"
	"askdocs-go/internal/model"
	"askdocs-go/internal/pipeline"
	"askdocs-go/internal/progress"
	"askdocs-go/internal/repository"
	"askdocs-go/internal/retrieval"
	"askdocs-go/internal/service"
	"askdocs-go/internal/streamer"
	"askdocs-go/pkg/database"
	"askdocs-go/pkg/embedding"
	"askdocs-go/pkg/llm"
	"askdocs-go/pkg/log"
	"askdocs-go/pkg/queue"
	"askdocs-go/pkg/storage"
	"askdocs-go/pkg/token"
	"askdocs-go/pkg/vectorindex"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与向量索引
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	esIndex, err := vectorindex.NewES(cfg.Elasticsearch)
	if err != nil {
		log.Errorf("向量索引初始化失败: %s", err)
		return
	}
	queue.InitProducer(cfg.Kafka)

	// 建表
	if err := database.DB.AutoMigrate(&model.Document{}, &model.User{}, &model.DailyNugget{}); err != nil {
		log.Errorf("数据库迁移失败: %s", err)
		return
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	dailyRepo := repository.NewDailyRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 5. 初始化核心组件 (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Errorf("模型客户端初始化失败: %s", err)
		return
	}
	ck, err := chunker.New(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	if err != nil {
		log.Errorf("切分器初始化失败: %s", err)
		return
	}
	progressStore := progress.NewRedisStore(database.RDB)

	// 6. 初始化文档摄取管道
	ingestPipeline := pipeline.New(
		pipeline.NewMinioFetcher(cfg.MinIO.BucketName),
		extractor.New(),
		ck,
		embeddingClient,
		esIndex,
		progressStore,
		docRepo,
		cfg.Ingestion.BatchSize,
	)

	// 7. 初始化 Service
	retriever := retrieval.New(embeddingClient, esIndex, cfg.Retrieval.TopK)
	answerer := streamer.New(llmClient)
	userService := service.NewUserService(userRepo, jwtManager)
	ingestService := service.NewIngestService(cfg.MinIO.BucketName, progressStore, ingestPipeline)
	chatService := service.NewChatService(retriever, answerer, conversationRepo, cfg.Elasticsearch.CorpusCollection)
	documentService := service.NewDocumentService(docRepo, esIndex, cfg.MinIO.BucketName)
	dailyService := service.NewDailyService(dailyRepo, llmClient, cfg.Daily.Fields)

	// 8. 启动后台 Kafka 消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go queue.StartConsumer(consumerCtx, cfg.Kafka, ingestPipeline)

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 10. 注册路由
	authHandler := handler.NewAuthHandler(userService)
	spaceHandler := handler.NewSpaceHandler(ingestService, chatService, documentService)
	chatHandler := handler.NewChatHandler(chatService, jwtManager)
	adminHandler := handler.NewAdminHandler(ingestService, documentService, cfg.Elasticsearch.CorpusCollection)
	dailyHandler := handler.NewDailyHandler(dailyService)
	healthHandler := handler.NewHealthHandler(esIndex)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/profile", middleware.AuthMiddleware(jwtManager), authHandler.Profile)
		}

		// Space 路由组：上传和删除需要认证，查询与问答公开
		spaces := apiV1.Group("/spaces")
		{
			spaces.GET("/:jobId/status", spaceHandler.Status)
			spaces.POST("/:jobId/ask", spaceHandler.Ask)
			spaces.GET("/:jobId/stream", spaceHandler.Stream)

			authed := spaces.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager))
			{
				authed.POST("/upload", spaceHandler.Upload)
				authed.DELETE("/:jobId", spaceHandler.Delete)
			}
		}

		// Chat 路由组，基于共享语料库，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager))
		{
			chat.POST("/ask", chatHandler.Ask)
			chat.GET("/stream", chatHandler.Stream)
		}
		// WebSocket 通过路径中的 token 自行认证
		apiV1.GET("/chat/ws/:token", chatHandler.HandleWS)

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			admin.POST("/documents", adminHandler.IngestDocument)
			admin.GET("/documents", adminHandler.ListDocuments)
			admin.DELETE("/documents/:docId", adminHandler.DeleteDocument)
		}

		// 每日内容路由组
		daily := apiV1.Group("/daily")
		{
			daily.GET("", dailyHandler.Get)
			daily.GET("/archive", dailyHandler.Archive)
			daily.POST("/generate",
				middleware.AuthMiddleware(jwtManager),
				middleware.AdminAuthMiddleware(),
				dailyHandler.Generate)
		}

		// 健康检查
		health := apiV1.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停掉消费者，再关闭 HTTP 服务器
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
