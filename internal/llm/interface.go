// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

// 错误定义
var (
	ErrUnknownProvider       = errors.New("未知的AI提供者")
	ErrSpeechNotSupported    = errors.New("该提供者不支持语音合成")
	ErrAudioInputUnsupported = errors.New("该提供者不支持音频输入")
)

// AudioInput 随提示一起发送的内联音频
type AudioInput struct {
	Data     string `json:"data"` // base64 编码的音频字节
	MimeType string `json:"mime_type"`
}

// CompletionRequest 请求参数标准化
type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Model        string  `json:"model,omitempty"`

	// 可选的内联音频（音频理解类请求）
	Audio *AudioInput `json:"audio,omitempty"`

	// 期望的结构化响应模式（JSON Schema 片段）。
	// 提供时要求提供商返回严格 JSON。
	ResponseSchema map[string]interface{} `json:"response_schema,omitempty"`
}

// CompletionResponse 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice"`                // 预置语音角色名
	StyleHint string `json:"style_hint,omitempty"` // 语气提示，如 "warm"
	Model     string `json:"model,omitempty"`
}

// SpeechResponse 语音合成响应。
// Data 为原始 PCM 字节（16位小端），由提供商从 base64 解码后返回。
type SpeechResponse struct {
	Data       []byte `json:"-"`
	MimeType   string `json:"mime_type"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	ModelName  string `json:"model_name,omitempty"`
}

// Provider 定义所有AI提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成（含音频理解与结构化输出）
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// 语音合成
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SpeechResponse, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// GetSupportedModelsForProvider 获取指定提供商支持的模型列表
func GetSupportedModelsForProvider(name string) []string {
	factory, exists := providers[name]
	if !exists {
		return []string{}
	}

	provider := factory()
	return provider.GetSupportedModels()
}
