// internal/app/app.go
package app

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/Corphon/PitchPilotMCP/internal/api"
	"github.com/Corphon/PitchPilotMCP/internal/config"
	"github.com/Corphon/PitchPilotMCP/internal/di"
	"github.com/Corphon/PitchPilotMCP/internal/services"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
	"github.com/Corphon/PitchPilotMCP/internal/utils"

	// 注册AI提供者
	_ "github.com/Corphon/PitchPilotMCP/internal/llm/providers/google"
	_ "github.com/Corphon/PitchPilotMCP/internal/llm/providers/openrouter"
)

// 存储变更订阅的取消函数
var unsubscribeFeed func()

// InitServices 按依赖顺序初始化所有服务并注册到容器。
// 必须在 config.InitConfig 之后调用。
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 日志先行
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "pitchpilot.log")); err != nil {
		log.Printf("警告: 初始化日志失败，仅输出到标准输出: %v", err)
	}

	// 1. 持久化存储
	store, err := storage.NewStore(filepath.Join(cfg.DataDir, "store"))
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	container.Register("store", store)

	// 存储变更推送到WebSocket订阅端
	unsubscribeFeed = store.Subscribe(api.PublishChange)

	// 2. 脚本分析
	scriptService := services.NewScriptService()
	container.Register("script", scriptService)

	// 3. AI生成（密钥缺失时进入未就绪状态，不阻塞启动）
	generationService := services.NewGenerationService(scriptService)
	container.Register("generation", generationService)

	// 4. 模板与会话
	templateService := services.NewTemplateService(store)
	container.Register("template", templateService)

	sessionService := services.NewSessionService(store)
	container.Register("session", sessionService)

	// 5. 脚本库
	libraryService := services.NewLibraryService(store, scriptService)
	container.Register("library", libraryService)

	// 6. 工作流
	workflowService := services.NewWorkflowService(
		generationService,
		templateService,
		sessionService,
		libraryService,
		scriptService,
	)
	container.Register("workflow", workflowService)

	// 7. 音频合成与播放
	audioService := services.NewAudioService(generationService)
	container.Register("audio", audioService)

	// 8. 配置管理
	configService := services.NewConfigService()
	container.Register("config", configService)

	return nil
}

// Cleanup 释放后台资源
func Cleanup() {
	if unsubscribeFeed != nil {
		unsubscribeFeed()
		unsubscribeFeed = nil
	}

	container := di.GetContainer()
	if audioService, ok := container.Get("audio").(*services.AudioService); ok && audioService != nil {
		audioService.Stop()
	}
}
