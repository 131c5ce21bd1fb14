// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/Corphon/PitchPilotMCP/internal/config"
	"github.com/Corphon/PitchPilotMCP/internal/di"
	"github.com/Corphon/PitchPilotMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	workflowService, ok := container.Get("workflow").(*services.WorkflowService)
	if !ok {
		return nil, fmt.Errorf("工作流服务未正确初始化")
	}

	generationService, ok := container.Get("generation").(*services.GenerationService)
	if !ok {
		return nil, fmt.Errorf("生成服务未正确初始化")
	}

	audioService, ok := container.Get("audio").(*services.AudioService)
	if !ok {
		return nil, fmt.Errorf("音频服务未正确初始化")
	}

	libraryService, ok := container.Get("library").(*services.LibraryService)
	if !ok {
		return nil, fmt.Errorf("脚本库服务未正确初始化")
	}

	templateService, ok := container.Get("template").(*services.TemplateService)
	if !ok {
		return nil, fmt.Errorf("模板服务未正确初始化")
	}

	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("会话服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	// ✅ 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(
		workflowService,
		generationService,
		audioService,
		libraryService,
		templateService,
		sessionService,
		configService,
	)

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// 静态文件服务
	r.Static("/static", cfg.StaticDir)

	// ===============================
	// 页面路由
	// ===============================
	r.GET("/", handler.IndexInfo)

	// WebSocket 支持
	r.GET("/ws/storage", handler.StorageFeedWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// ===============================
		// 工作流与生成路由
		// ===============================
		workflowGroup := api.Group("/workflow")
		{
			workflowGroup.GET("", handler.GetWorkflow)
			workflowGroup.PUT("/input", handler.UpdateWorkflowInput)
		}

		api.POST("/generate", GenerationRateLimit(), handler.Generate)
		api.POST("/extract", GenerationRateLimit(), handler.Extract)

		// ===============================
		// 语音合成与播放路由
		// ===============================
		api.POST("/synthesize", SynthesisRateLimit(), handler.Synthesize)

		audioGroup := api.Group("/audio")
		{
			audioGroup.GET("/state", handler.GetPlaybackState)
			audioGroup.GET("/:id/wav", handler.GetClipWAV)
			audioGroup.POST("/:id/play", handler.PlayClip)
			audioGroup.POST("/stop", handler.StopPlayback)
		}

		// ===============================
		// 脚本库路由
		// ===============================
		scriptsGroup := api.Group("/scripts")
		{
			scriptsGroup.GET("", handler.GetScripts)
			scriptsGroup.POST("", handler.SaveScript)
			scriptsGroup.DELETE("/:id", handler.DeleteScript)
			scriptsGroup.POST("/:id/use-as-style", handler.UseScriptAsStyle)
		}

		// ===============================
		// 模板路由
		// ===============================
		templatesGroup := api.Group("/templates")
		{
			templatesGroup.GET("", handler.GetTemplates)
			templatesGroup.POST("", handler.CreateTemplate)
			templatesGroup.PUT("/:id", handler.UpdateTemplate)
			templatesGroup.DELETE("/:id", handler.DeleteTemplate)
		}

		// ===============================
		// 会话路由
		// ===============================
		sessionGroup := api.Group("/session")
		{
			sessionGroup.GET("", handler.GetSession)
			sessionGroup.PUT("/tab", handler.SetActiveTab)
			sessionGroup.DELETE("/style-reference", handler.ClearStyleReference)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("/test-connection", handler.TestConnection)
		}

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.PUT("/config", AccessSecretMiddleware(), handler.UpdateLLMConfig)
		}

		// 配置令牌换取
		api.POST("/auth/token", handler.IssueConfigToken)

		// ===============================
		// 配置相关路由
		// ===============================
		configGroup := api.Group("/config")
		{
			configGroup.GET("/health", handler.GetConfigHealth)
		}

		// 运行指标
		api.GET("/metrics", handler.GetMetrics)

		// WebSocket 管理路由
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
