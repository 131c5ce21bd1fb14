// internal/llm/providers/google/google.go
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Corphon/PitchPilotMCP/internal/audio"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			models: []string{
				"gemini-2.5-pro",
				"gemini-2.5-flash",
				"gemini-2.5-flash-preview-tts",
			},
			baseURL: "https://generativelanguage.googleapis.com/v1beta",
		}
	})
}

type Provider struct {
	apiKey          string
	baseURL         string
	client          *http.Client
	defaultModel    string
	ttsModel        string
	availableModels []string
	models          []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gemini-2.5-flash"
	}

	if model, exists := config["tts_model"]; exists && model != "" {
		p.ttsModel = model
	} else {
		p.ttsModel = "gemini-2.5-flash-preview-tts"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.models
}

// geminiParts 组装请求的 parts 数组（文本 + 可选内联音频）
func geminiParts(req llm.CompletionRequest) []map[string]interface{} {
	parts := []map[string]interface{}{}

	if req.Audio != nil {
		parts = append(parts, map[string]interface{}{
			"inlineData": map[string]string{
				"mimeType": req.Audio.MimeType,
				"data":     req.Audio.Data,
			},
		})
	}

	parts = append(parts, map[string]interface{}{"text": req.Prompt})
	return parts
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	// 构建Gemini请求
	generationConfig := map[string]interface{}{
		"temperature": req.Temperature,
	}

	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}

	// 结构化输出：声明期望的响应模式，要求严格JSON
	if req.ResponseSchema != nil {
		generationConfig["responseMimeType"] = "application/json"
		generationConfig["responseSchema"] = req.ResponseSchema
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": geminiParts(req)},
		},
		"generationConfig": generationConfig,
	}

	if req.SystemPrompt != "" {
		requestBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.SystemPrompt}},
		}
	}

	response, err := p.doGenerateContent(ctx, model, requestBody)
	if err != nil {
		return nil, err
	}

	if len(response.Candidates) == 0 {
		return nil, errors.New("google gemini未返回任何结果")
	}

	// 提取文本内容
	var resultText string
	for _, part := range response.Candidates[0].Content.Parts {
		resultText += part.Text
	}

	return &llm.CompletionResponse{
		Text:         resultText,
		FinishReason: response.Candidates[0].FinishReason,
		TokensUsed:   response.UsageMetadata.TotalTokenCount,
		PromptTokens: response.UsageMetadata.PromptTokenCount,
		OutputTokens: response.UsageMetadata.CandidatesTokenCount,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// SynthesizeSpeech 调用 TTS 模型生成语音。
// Gemini 返回 base64 的 16 位小端 PCM（默认 24kHz 单声道），
// 采样率从 inlineData 的 mimeType 中解析。
func (p *Provider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	model := req.Model
	if model == "" {
		model = p.ttsModel
	}

	voice := req.Voice
	if voice == "" {
		voice = "Puck"
	}

	// 语气提示作为朗读指令前缀
	text := req.Text
	if req.StyleHint != "" {
		text = fmt.Sprintf("Say in a %s tone: %s", req.StyleHint, text)
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": text}}},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]interface{}{
				"voiceConfig": map[string]interface{}{
					"prebuiltVoiceConfig": map[string]string{
						"voiceName": voice,
					},
				},
			},
		},
	}

	response, err := p.doGenerateContent(ctx, model, requestBody)
	if err != nil {
		return nil, err
	}

	if len(response.Candidates) == 0 {
		return nil, errors.New("google gemini未返回任何结果")
	}

	// 提取音频载荷
	for _, part := range response.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}

		data, err := audio.DecodeBase64(part.InlineData.Data)
		if err != nil {
			return nil, err
		}

		return &llm.SpeechResponse{
			Data:       data,
			MimeType:   part.InlineData.MimeType,
			SampleRate: parseSampleRate(part.InlineData.MimeType),
			Channels:   1,
			ModelName:  model,
		}, nil
	}

	return nil, errors.New("google gemini未返回音频载荷")
}

// generateContent 响应结构
type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// doGenerateContent 发送 generateContent 请求并解析响应
func (p *Provider) doGenerateContent(ctx context.Context, model string, requestBody map[string]interface{}) (*generateContentResponse, error) {
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	// 构建URL (注意Gemini API的结构与OpenAI不同)
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	// 检查错误
	if httpResp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		body, _ := io.ReadAll(httpResp.Body)
		if err := json.Unmarshal(body, &errorResp); err == nil {
			if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
				return nil, fmt.Errorf("google gemini API错误(%d): %v",
					httpResp.StatusCode, errorObj["message"])
			}
		}
		return nil, fmt.Errorf("google gemini API错误(%d): %s", httpResp.StatusCode, string(body))
	}

	var response generateContentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	return &response, nil
}

// parseSampleRate 从 mimeType 中解析采样率
// 如 "audio/L16;codec=pcm;rate=24000" -> 24000
func parseSampleRate(mimeType string) int {
	for _, seg := range strings.Split(mimeType, ";") {
		seg = strings.TrimSpace(seg)
		if strings.HasPrefix(seg, "rate=") {
			if rate, err := strconv.Atoi(strings.TrimPrefix(seg, "rate=")); err == nil {
				return rate
			}
		}
	}
	return 24000
}

// FetchAvailableModels 尝试获取用户账户可用的模型列表
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("API密钥未设置，无法获取模型列表")
	}

	url := fmt.Sprintf("%s/models?key=%s", p.baseURL, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("获取模型列表失败(%d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return err
	}

	// 从完整路径中提取模型名称 (如 "models/gemini-pro" -> "gemini-pro")
	p.availableModels = make([]string, 0, len(response.Models))
	for _, model := range response.Models {
		parts := strings.Split(model.Name, "/")
		p.availableModels = append(p.availableModels, parts[len(parts)-1])
	}

	return nil
}
