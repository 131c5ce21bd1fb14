// internal/services/generation_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/PitchPilotMCP/internal/config"
	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
)

// 每个操作的温度是固定策略：提取要求低方差，创作生成用高方差
const (
	extractionTemperature = 0.1
	generationTemperature = 0.9
)

// defaultScriptExample 内置的默认示例脚本，
// 未选择自定义模板时逐字嵌入生成提示中。
const defaultScriptExample = `[0-5s] Hey Sarah, I was just on the Brightside Bakery site and had to send you this.
[5-15s] I noticed you don't have online ordering set up, and honestly with the foot traffic you're getting on Instagram, that's money sitting on the table.
[15-25s] I put together a quick mockup of what an order page could look like for you, no strings attached, it's yours either way.
[25-30s] If you want it, just reply here and I'll send it over. Talk soon!`

// extractionFieldNames 语音提取要求模型填充的四个命名字段
var extractionFieldNames = []string{"owner_name", "business_name", "identified_gap", "free_value"}

// GenerationService 封装对生成式AI后端的三类调用：
// 音频到结构化数据的提取、脚本生成、语音合成。
// 所有操作都是无状态的单次请求/响应。
type GenerationService struct {
	provider           llm.Provider
	providerName       string
	providerMutex      sync.RWMutex
	isReady            bool
	readyState         string
	activeDefaultModel string

	scripts *ScriptService
}

// NewGenerationService 从当前配置创建生成服务
func NewGenerationService(scripts *ScriptService) *GenerationService {
	service := &GenerationService{
		scripts:    scripts,
		readyState: "Uninitialized",
	}

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}

	if cfg.LLMProvider == "" || cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = cfg.LLMConfig["default_model"]
	service.isReady = true
	service.readyState = "Ready"

	return service
}

// NewEmptyGenerationService 创建未就绪的生成服务作为后备方案
func NewEmptyGenerationService(scripts *ScriptService) *GenerationService {
	return &GenerationService{
		scripts:      scripts,
		providerName: "empty",
		readyState:   "Standby Service Mode - Please configure the API key in settings",
	}
}

// IsReady 返回服务是否已就绪
func (s *GenerationService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *GenerationService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderName 返回当前提供商名称
func (s *GenerationService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 切换AI提供商配置
func (s *GenerationService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)
	if err != nil {
		return apperrors.NewProcessingError("初始化AI提供商失败", err)
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = cfg["default_model"]
	s.isReady = true
	s.readyState = "Ready"

	utils.GetLogger().Info("AI提供商已切换", map[string]interface{}{
		"provider": providerName,
		"model":    s.activeDefaultModel,
	})

	return nil
}

// currentProvider 线程安全地取出已就绪的提供商
func (s *GenerationService) currentProvider() (llm.Provider, error) {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if !s.isReady || s.provider == nil {
		return nil, apperrors.NewBackendError(
			fmt.Sprintf("AI服务未就绪: %s", s.readyState), nil)
	}
	return s.provider, nil
}

// SanitizeField 清理提取/表单字段：修剪空白并去除尖括号，
// 避免提示注入或标记残留进入后续提示和界面。
func SanitizeField(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "<", "")
	value = strings.ReplaceAll(value, ">", "")
	return strings.TrimSpace(value)
}

// ExtractFromAudio 将录制的语音便签发送给AI后端，
// 提取四个命名表单字段。只返回模型实际填充的字段。
func (s *GenerationService) ExtractFromAudio(ctx context.Context, audioB64, mimeType string) (*models.ExtractedFields, error) {
	if strings.TrimSpace(audioB64) == "" {
		return nil, apperrors.NewValidationError("音频数据为空", nil)
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	provider, err := s.currentProvider()
	if err != nil {
		return nil, err
	}

	started := time.Now()

	prompt := `Listen to this voice note from a sales person describing an outreach target.
Extract the following fields from what is said. Leave a field empty if it is not mentioned:
- owner_name: the first name of the person being contacted
- business_name: the name of their business
- identified_gap: the specific problem or missing piece identified in their business
- free_value: the free asset or help being offered up front`

	properties := make(map[string]interface{}, len(extractionFieldNames))
	for _, name := range extractionFieldNames {
		properties[name] = map[string]interface{}{"type": "STRING"}
	}

	req := llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: extractionTemperature,
		Audio:       &llm.AudioInput{Data: audioB64, MimeType: mimeType},
		ResponseSchema: map[string]interface{}{
			"type":       "OBJECT",
			"properties": properties,
		},
	}

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		utils.GetMetrics().RecordFailure(utils.OpExtraction)
		return nil, apperrors.NewBackendError("语音提取失败，请重试", err)
	}

	var fields models.ExtractedFields
	if err := json.Unmarshal([]byte(cleanJSONString(resp.Text)), &fields); err != nil {
		utils.GetMetrics().RecordFailure(utils.OpExtraction)
		utils.GetLogger().Warn("提取响应无法解析为JSON", map[string]interface{}{
			"provider":    resp.ProviderName,
			"text_length": len(resp.Text),
		})
		return nil, apperrors.NewResponseFormatError("AI返回的提取结果格式无效", err)
	}

	// 所有提取字段先清理再使用
	fields.OwnerName = SanitizeField(fields.OwnerName)
	fields.BusinessName = SanitizeField(fields.BusinessName)
	fields.IdentifiedGap = SanitizeField(fields.IdentifiedGap)
	fields.FreeValue = SanitizeField(fields.FreeValue)

	utils.GetMetrics().RecordSuccess(utils.OpExtraction, time.Since(started))
	return &fields, nil
}

// generationOutput 脚本生成要求的两字段结构化响应
type generationOutput struct {
	Script   string `json:"script"`
	FollowUp string `json:"follow_up"`
}

// GenerateScript 构建生成提示并请求两字段结构化响应
func (s *GenerationService) GenerateScript(ctx context.Context, input *models.GenerationInput, template *models.CustomTemplate, referenceScript string) (*models.GenerationResult, error) {
	provider, err := s.currentProvider()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	prompt := s.buildScriptPrompt(input, template, referenceScript)

	req := llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: generationTemperature,
		ResponseSchema: map[string]interface{}{
			"type": "OBJECT",
			"properties": map[string]interface{}{
				"script":    map[string]interface{}{"type": "STRING"},
				"follow_up": map[string]interface{}{"type": "STRING"},
			},
			"required": []string{"script", "follow_up"},
		},
	}

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		utils.GetMetrics().RecordFailure(utils.OpGeneration)
		return nil, apperrors.NewBackendError("脚本生成失败，请重试", err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		utils.GetMetrics().RecordFailure(utils.OpGeneration)
		return nil, apperrors.NewBackendError("AI返回了空响应", nil)
	}

	var output generationOutput
	if err := json.Unmarshal([]byte(cleanJSONString(resp.Text)), &output); err != nil {
		utils.GetMetrics().RecordFailure(utils.OpGeneration)
		utils.GetLogger().Warn("生成响应无法解析为JSON", map[string]interface{}{
			"provider":    resp.ProviderName,
			"text_length": len(resp.Text),
		})
		return nil, apperrors.NewResponseFormatError("AI返回的生成结果格式无效", err)
	}

	if output.Script == "" || output.FollowUp == "" {
		utils.GetMetrics().RecordFailure(utils.OpGeneration)
		return nil, apperrors.NewResponseFormatError("AI响应缺少必需字段", nil)
	}

	utils.GetMetrics().RecordSuccess(utils.OpGeneration, time.Since(started))
	return &models.GenerationResult{
		Script:   output.Script,
		FollowUp: output.FollowUp,
	}, nil
}

// buildScriptPrompt 将清理后的输入字段、模板与风格引用拼装为自然语言提示
func (s *GenerationService) buildScriptPrompt(input *models.GenerationInput, template *models.CustomTemplate, referenceScript string) string {
	var b strings.Builder

	b.WriteString("You are writing a short sales outreach voice note script and a follow-up text message.\n\n")

	fmt.Fprintf(&b, "Target owner name: %s\n", SanitizeField(input.OwnerName))
	fmt.Fprintf(&b, "Business name: %s\n", SanitizeField(input.BusinessName))
	fmt.Fprintf(&b, "Identified gap in their business: %s\n", SanitizeField(input.IdentifiedGap))
	fmt.Fprintf(&b, "Free value being offered: %s\n", SanitizeField(input.FreeValue))
	fmt.Fprintf(&b, "Delivery platform: %s\n", input.Platform)
	fmt.Fprintf(&b, "Tone: %s\n", input.Tone)
	fmt.Fprintf(&b, "Goal of the message: %s\n\n", input.Goal)

	if template != nil && strings.TrimSpace(template.Body) != "" {
		b.WriteString("Follow the structure of this custom template:\n")
		b.WriteString(template.Body)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Here is an example of the structure and feel to aim for:\n")
		b.WriteString(defaultScriptExample)
		b.WriteString("\n\n")
	}

	if referenceScript != "" {
		b.WriteString("Match the voice and style of this previously approved script:\n")
		b.WriteString(referenceScript)
		b.WriteString("\n\n")
	}

	b.WriteString("Requirements:\n")
	b.WriteString("- The script should sound natural when spoken aloud, around 30-60 seconds.\n")
	b.WriteString("- Embed coarse elapsed-time markers like [0-5s] inside the script at natural segment boundaries.\n")
	b.WriteString("- The follow_up is a short text message sent after the voice note, no timing markers.\n")

	return b.String()
}

// SynthesizeSpeech 请求语音合成。
// 计时标记先被剥离，确保不会被朗读出来。
func (s *GenerationService) SynthesizeSpeech(ctx context.Context, text, voice, toneLabel string) (*llm.SpeechResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("合成文本为空", nil)
	}

	provider, err := s.currentProvider()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	spoken := s.scripts.StripTimingMarkers(text)

	resp, err := provider.SynthesizeSpeech(ctx, llm.SpeechRequest{
		Text:      spoken,
		Voice:     voice,
		StyleHint: toneLabel,
	})
	if err != nil {
		utils.GetMetrics().RecordFailure(utils.OpSynthesis)
		return nil, apperrors.NewPlaybackError("语音合成失败", err)
	}

	if len(resp.Data) == 0 {
		utils.GetMetrics().RecordFailure(utils.OpSynthesis)
		return nil, apperrors.NewPlaybackError("AI未返回音频载荷", nil)
	}

	utils.GetMetrics().RecordSuccess(utils.OpSynthesis, time.Since(started))
	return resp, nil
}

// TestConnection 向后端发送一个最小请求以验证配置
func (s *GenerationService) TestConnection(ctx context.Context) error {
	provider, err := s.currentProvider()
	if err != nil {
		return err
	}

	req := llm.CompletionRequest{
		Prompt:      "Reply with the single word: ok",
		Temperature: 0,
		MaxTokens:   8,
	}

	if _, err := provider.CompleteText(ctx, req); err != nil {
		return apperrors.NewBackendError("连接测试失败", err)
	}
	return nil
}

// cleanJSONString 清理JSON字符串，去除围栏和前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	"\u00A0", " ",
)

func cleanJSONString(s string) string {
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 截取第一个 '{' 到最后一个 '}' 之间的内容
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
