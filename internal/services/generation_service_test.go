// internal/services/generation_service_test.go
package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
	"github.com/Corphon/PitchPilotMCP/internal/models"
)

// stubProvider 可编程的测试提供者，记录最近一次请求
type stubProvider struct {
	mu          sync.Mutex
	lastText    llm.CompletionRequest
	lastSpeech  llm.SpeechRequest
	textReply   string
	textErr     error
	textBlock   chan struct{} // 非nil时CompleteText阻塞到该通道关闭
	speechReply *llm.SpeechResponse
	speechErr   error
}

func (p *stubProvider) Initialize(config map[string]string) error { return nil }
func (p *stubProvider) GetName() string                           { return "Stub" }
func (p *stubProvider) GetSupportedModels() []string              { return []string{"stub-1"} }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.lastText = req
	block := p.textBlock
	p.mu.Unlock()

	if block != nil {
		<-block
	}

	if p.textErr != nil {
		return nil, p.textErr
	}
	return &llm.CompletionResponse{Text: p.textReply, ProviderName: "Stub"}, nil
}

func (p *stubProvider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	p.mu.Lock()
	p.lastSpeech = req
	p.mu.Unlock()

	if p.speechErr != nil {
		return nil, p.speechErr
	}
	return p.speechReply, nil
}

// newStubbedGeneration 创建绑定到给定stub的就绪生成服务
func newStubbedGeneration(stub *stubProvider) *GenerationService {
	service := NewEmptyGenerationService(NewScriptService())
	service.provider = stub
	service.providerName = "stub"
	service.isReady = true
	service.readyState = "Ready"
	return service
}

func TestSanitizeField(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Mike  ", "Mike"},
		{"<script>alert</script>", "scriptalert/script"},
		{"Miller <Plumbing>", "Miller Plumbing"},
		{"", ""},
		{"  <  >  ", ""},
	}

	for _, tt := range tests {
		if got := SanitizeField(tt.input); got != tt.expected {
			t.Errorf("SanitizeField(%q): 期望 %q，实际 %q", tt.input, tt.expected, got)
		}
	}
}

func TestExtractFromAudio(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"owner_name":" <Mike> ","business_name":"Miller Plumbing","identified_gap":"no booking form","free_value":"free mockup"}`,
	}
	service := newStubbedGeneration(stub)

	fields, err := service.ExtractFromAudio(context.Background(), "ZmFrZQ==", "audio/webm")
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}

	// 所有字段先清理再返回
	if fields.OwnerName != "Mike" {
		t.Errorf("owner_name未清理: %q", fields.OwnerName)
	}
	if fields.BusinessName != "Miller Plumbing" {
		t.Errorf("business_name不匹配: %q", fields.BusinessName)
	}

	// 请求携带音频与低温度
	if stub.lastText.Audio == nil || stub.lastText.Audio.Data != "ZmFrZQ==" {
		t.Error("请求未携带音频数据")
	}
	if stub.lastText.Temperature != extractionTemperature {
		t.Errorf("提取温度不匹配: %v", stub.lastText.Temperature)
	}
	if stub.lastText.ResponseSchema == nil {
		t.Error("提取请求应携带响应模式")
	}
}

func TestExtractFromAudioEmptyInput(t *testing.T) {
	service := newStubbedGeneration(&stubProvider{})

	if _, err := service.ExtractFromAudio(context.Background(), "   ", ""); !apperrors.IsValidationError(err) {
		t.Errorf("空音频应返回验证错误，实际 %v", err)
	}
}

func TestExtractFromAudioMalformedResponse(t *testing.T) {
	stub := &stubProvider{textReply: "this is not json at all"}
	service := newStubbedGeneration(stub)

	_, err := service.ExtractFromAudio(context.Background(), "ZmFrZQ==", "")
	if !apperrors.IsResponseFormatError(err) {
		t.Errorf("非JSON响应应返回格式错误，实际 %v", err)
	}
}

func TestGenerateScriptPromptContent(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"script":"[0-5s] Hey Mike","follow_up":"Just floating this back up"}`,
	}
	service := newStubbedGeneration(stub)

	input := &models.GenerationInput{
		OwnerName:     "Mike",
		BusinessName:  "Miller Plumbing",
		IdentifiedGap: "no booking form",
		FreeValue:     "free mockup",
		Platform:      models.PlatformWhatsApp,
		Tone:          models.ToneCasual,
		Goal:          models.GoalBookCall,
	}

	result, err := service.GenerateScript(context.Background(), input, nil, "")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if result.Script == "" || result.FollowUp == "" {
		t.Fatalf("结果缺少字段: %+v", result)
	}

	prompt := stub.lastText.Prompt
	for _, fragment := range []string{"Mike", "Miller Plumbing", "no booking form", "free mockup", "whatsapp", "casual", "book_call"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("提示缺少 %q", fragment)
		}
	}

	// 未选模板时嵌入内置示例
	if !strings.Contains(prompt, "Brightside Bakery") {
		t.Error("提示应包含内置示例脚本")
	}

	if stub.lastText.Temperature != generationTemperature {
		t.Errorf("生成温度不匹配: %v", stub.lastText.Temperature)
	}
}

func TestGenerateScriptWithTemplateAndStyle(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"script":"s","follow_up":"f"}`,
	}
	service := newStubbedGeneration(stub)

	input := &models.GenerationInput{
		OwnerName:     "Mike",
		BusinessName:  "Miller Plumbing",
		IdentifiedGap: "gap",
		FreeValue:     "value",
		Platform:      models.PlatformEmail,
		Tone:          models.ToneWarm,
		Goal:          models.GoalGetReply,
	}
	template := &models.CustomTemplate{ID: "1", Name: "Opener", Body: "CUSTOM TEMPLATE BODY"}

	if _, err := service.GenerateScript(context.Background(), input, template, "STYLE REFERENCE TEXT"); err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	prompt := stub.lastText.Prompt
	if !strings.Contains(prompt, "CUSTOM TEMPLATE BODY") {
		t.Error("提示应包含自定义模板")
	}
	if strings.Contains(prompt, "Brightside Bakery") {
		t.Error("选择模板后不应再嵌入内置示例")
	}
	if !strings.Contains(prompt, "STYLE REFERENCE TEXT") {
		t.Error("提示应包含风格引用脚本")
	}
}

func TestGenerateScriptMissingFields(t *testing.T) {
	stub := &stubProvider{textReply: `{"script":"only script"}`}
	service := newStubbedGeneration(stub)

	input := &models.GenerationInput{
		OwnerName: "Mike", BusinessName: "MP", IdentifiedGap: "g", FreeValue: "v",
		Platform: models.PlatformWhatsApp, Tone: models.ToneCasual, Goal: models.GoalBookCall,
	}

	if _, err := service.GenerateScript(context.Background(), input, nil, ""); !apperrors.IsResponseFormatError(err) {
		t.Errorf("缺少必需字段应返回格式错误，实际 %v", err)
	}
}

func TestGenerateScriptFencedResponse(t *testing.T) {
	stub := &stubProvider{
		textReply: "```json\n{\"script\":\"hello\",\"follow_up\":\"bye\"}\n```",
	}
	service := newStubbedGeneration(stub)

	input := &models.GenerationInput{
		OwnerName: "Mike", BusinessName: "MP", IdentifiedGap: "g", FreeValue: "v",
		Platform: models.PlatformWhatsApp, Tone: models.ToneCasual, Goal: models.GoalBookCall,
	}

	result, err := service.GenerateScript(context.Background(), input, nil, "")
	if err != nil {
		t.Fatalf("围栏JSON应被容忍: %v", err)
	}
	if result.Script != "hello" || result.FollowUp != "bye" {
		t.Errorf("结果不匹配: %+v", result)
	}
}

func TestSynthesizeSpeechStripsMarkers(t *testing.T) {
	stub := &stubProvider{
		speechReply: &llm.SpeechResponse{
			Data:       make([]byte, 100),
			SampleRate: 24000,
			Channels:   1,
		},
	}
	service := newStubbedGeneration(stub)

	_, err := service.SynthesizeSpeech(context.Background(), "[0-5s] Hey Mike, [5-10s] saw your site", "Puck", "casual")
	if err != nil {
		t.Fatalf("合成失败: %v", err)
	}

	if stub.lastSpeech.Text != "Hey Mike, saw your site" {
		t.Errorf("合成文本应剥离计时标记: %q", stub.lastSpeech.Text)
	}
	if stub.lastSpeech.Voice != "Puck" || stub.lastSpeech.StyleHint != "casual" {
		t.Errorf("语音参数不匹配: %+v", stub.lastSpeech)
	}
}

func TestSynthesizeSpeechEmptyPayload(t *testing.T) {
	stub := &stubProvider{
		speechReply: &llm.SpeechResponse{SampleRate: 24000, Channels: 1},
	}
	service := newStubbedGeneration(stub)

	if _, err := service.SynthesizeSpeech(context.Background(), "Hello", "Puck", "casual"); !apperrors.IsPlaybackError(err) {
		t.Errorf("空音频载荷应返回播放错误，实际 %v", err)
	}
}

func TestNotReadyService(t *testing.T) {
	service := NewEmptyGenerationService(NewScriptService())

	if service.IsReady() {
		t.Error("空服务不应就绪")
	}

	_, err := service.ExtractFromAudio(context.Background(), "ZmFrZQ==", "")
	if !apperrors.IsBackendError(err) {
		t.Errorf("未就绪服务应返回后端错误，实际 %v", err)
	}
}

func TestCleanJSONString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"noise before {\"a\":1} noise after", `{"a":1}`},
		{"\uFEFF{\"a\":1}", `{"a":1}`},
		{"{\"a\": 1}", `{"a": 1}`},
		{"no braces here", "no braces here"},
	}

	for _, tt := range tests {
		if got := cleanJSONString(tt.input); got != tt.expected {
			t.Errorf("cleanJSONString(%q): 期望 %q，实际 %q", tt.input, tt.expected, got)
		}
	}
}
