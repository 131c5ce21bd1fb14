// internal/services/config_service.go
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Corphon/PitchPilotMCP/internal/config"
	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
)

// ConfigService 管理设置的读取与更新。
// API密钥落盘前用本机密钥加密，返回给界面时只保留尾部四位。
type ConfigService struct {
	machineKey string
}

// SettingsView 返回给界面的设置视图（密钥已脱敏）
type SettingsView struct {
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	APIKeyMasked   string   `json:"api_key_masked"`
	APIKeyPresent  bool     `json:"api_key_present"`
	KnownProviders []string `json:"known_providers"`
	DebugMode      bool     `json:"debug_mode"`
}

// NewConfigService 创建配置服务并加载本机加密密钥
func NewConfigService() *ConfigService {
	s := &ConfigService{}

	cfg := config.GetCurrentConfig()
	if cfg != nil {
		s.machineKey = loadOrCreateMachineKey(cfg.DataDir)
	}

	return s
}

// loadOrCreateMachineKey 读取或生成用于加密API密钥的本机密钥
func loadOrCreateMachineKey(dataDir string) string {
	keyPath := filepath.Join(dataDir, ".machine_key")

	if data, err := os.ReadFile(keyPath); err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data))
	}

	key, err := utils.GenerateRandomKey(32)
	if err != nil {
		// 退化为可预测但可用的密钥，仅影响落盘加密强度
		key = fmt.Sprintf("pitchpilot_%s_%d", dataDir, os.Getpid())
	}

	if err := os.WriteFile(keyPath, []byte(key), 0600); err != nil {
		fmt.Printf("警告: 保存本机密钥失败: %v\n", err)
	}

	return key
}

// GetSettings 返回脱敏后的当前设置
func (s *ConfigService) GetSettings() *SettingsView {
	cfg := config.GetCurrentConfig()

	view := &SettingsView{
		Provider:       cfg.LLMProvider,
		KnownProviders: llm.ListProviders(),
		DebugMode:      cfg.DebugMode,
	}

	if cfg.LLMConfig != nil {
		view.Model = cfg.LLMConfig["default_model"]
		apiKey := s.resolveAPIKey(cfg.LLMConfig)
		view.APIKeyPresent = apiKey != ""
		view.APIKeyMasked = maskAPIKey(apiKey)
	}

	return view
}

// UpdateLLMSettings 更新提供商配置并持久化（密钥加密落盘）
func (s *ConfigService) UpdateLLMSettings(provider, apiKey, model string) error {
	if provider == "" {
		return apperrors.NewValidationError("未指定AI提供商", nil)
	}

	known := false
	for _, name := range llm.ListProviders() {
		if name == provider {
			known = true
			break
		}
	}
	if !known {
		return apperrors.NewValidationError(fmt.Sprintf("未知的AI提供商: %s", provider), nil)
	}

	cfg := config.GetCurrentConfig()
	llmConfig := map[string]string{}
	for k, v := range cfg.LLMConfig {
		llmConfig[k] = v
	}

	if model != "" {
		llmConfig["default_model"] = model
	}

	if apiKey != "" {
		// 加密落盘，同时从持久化配置中去掉明文
		encrypted, err := utils.Encrypt(apiKey, s.machineKey)
		if err != nil {
			return apperrors.NewProcessingError("加密API密钥失败", err)
		}
		llmConfig["api_key_enc"] = encrypted
		llmConfig["api_key"] = ""
	}

	if err := config.UpdateLLMConfig(provider, llmConfig); err != nil {
		return err
	}

	utils.GetLogger().Info("AI设置已更新", map[string]interface{}{
		"provider":    provider,
		"model":       llmConfig["default_model"],
		"key_changed": apiKey != "",
	})
	return nil
}

// DecryptedLLMConfig 返回带明文API密钥的提供商配置，用于初始化提供商
func (s *ConfigService) DecryptedLLMConfig() map[string]string {
	cfg := config.GetCurrentConfig()

	llmConfig := map[string]string{}
	for k, v := range cfg.LLMConfig {
		llmConfig[k] = v
	}
	llmConfig["api_key"] = s.resolveAPIKey(cfg.LLMConfig)
	delete(llmConfig, "api_key_enc")

	return llmConfig
}

// resolveAPIKey 取得明文API密钥：优先明文（来自环境变量），否则解密存储值
func (s *ConfigService) resolveAPIKey(llmConfig map[string]string) string {
	if llmConfig == nil {
		return ""
	}

	if key := llmConfig["api_key"]; key != "" {
		return key
	}

	if enc := llmConfig["api_key_enc"]; enc != "" {
		key, err := utils.Decrypt(enc, s.machineKey)
		if err == nil {
			return key
		}
	}

	return ""
}

// HealthReport 配置健康状况
type HealthReport struct {
	Healthy       bool     `json:"healthy"`
	Provider      string   `json:"provider"`
	APIKeyPresent bool     `json:"api_key_present"`
	DataDirOK     bool     `json:"data_dir_ok"`
	Problems      []string `json:"problems,omitempty"`
}

// Health 检查配置是否可用
func (s *ConfigService) Health() *HealthReport {
	cfg := config.GetCurrentConfig()

	report := &HealthReport{
		Provider: cfg.LLMProvider,
	}

	if cfg.LLMProvider == "" {
		report.Problems = append(report.Problems, "未配置AI提供商")
	}

	report.APIKeyPresent = s.resolveAPIKey(cfg.LLMConfig) != ""
	if !report.APIKeyPresent {
		report.Problems = append(report.Problems, "未配置API密钥")
	}

	if info, err := os.Stat(cfg.DataDir); err == nil && info.IsDir() {
		report.DataDirOK = true
	} else {
		report.Problems = append(report.Problems, "数据目录不可用")
	}

	report.Healthy = len(report.Problems) == 0
	return report
}

// maskAPIKey 保留密钥尾部四位
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
