// cmd/demo/main.go
// 离线演示：用脚本化的模拟AI提供者跑完整条生成链路，
// 不需要网络和API密钥。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/Corphon/PitchPilotMCP/internal/app"
	"github.com/Corphon/PitchPilotMCP/internal/audio"
	"github.com/Corphon/PitchPilotMCP/internal/config"
	"github.com/Corphon/PitchPilotMCP/internal/di"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/services"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
)

func init() {
	llm.Register("mock", func() llm.Provider {
		return &mockProvider{}
	})
}

// mockProvider 返回预先写好的响应，形状与真实后端一致
type mockProvider struct{}

func (p *mockProvider) Initialize(config map[string]string) error { return nil }

func (p *mockProvider) GetName() string { return "Mock" }

func (p *mockProvider) GetSupportedModels() []string { return []string{"mock-1"} }

func (p *mockProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var payload map[string]string

	if req.Audio != nil {
		// 语音提取请求
		payload = map[string]string{
			"owner_name":     "Mike",
			"business_name":  "Miller Plumbing",
			"identified_gap": "the website has no booking form, customers have to call",
			"free_value":     "a free mock-up of a booking page",
		}
	} else {
		// 脚本生成请求
		payload = map[string]string{
			"script": "[0-3s] Hey Mike, just came across Miller Plumbing.\n" +
				"[3-10s] Noticed the website has no booking form, so customers have to call you during jobs.\n" +
				"[10-20s] I put together a free mock-up of a booking page for you, no strings attached.\n" +
				"[20-25s] Want me to send it over?",
			"follow_up": "Hey Mike, just floating this back up in case it got buried. Still happy to send that booking page mock-up over.",
		}
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         string(text),
		ModelName:    "mock-1",
		ProviderName: p.GetName(),
	}, nil
}

func (p *mockProvider) SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) (*llm.SpeechResponse, error) {
	// 半秒440Hz正弦波，16位小端PCM
	const sampleRate = 24000
	samples := sampleRate / 2

	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/sampleRate) * 16000)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}

	return &llm.SpeechResponse{
		Data:       data,
		MimeType:   "audio/L16;codec=pcm;rate=24000",
		SampleRate: sampleRate,
		Channels:   1,
		ModelName:  "mock-tts",
	}, nil
}

func main() {
	fmt.Println("🚀 PitchPilotMCP 离线演示")
	fmt.Println("=================================")

	// 演示数据放在临时目录，不污染工作目录
	tempDir, err := os.MkdirTemp("", "pitchpilot_demo_*")
	if err != nil {
		log.Fatalf("创建临时目录失败: %v", err)
	}
	defer os.RemoveAll(tempDir)

	os.Setenv("DATA_DIR", tempDir)
	os.Setenv("LOG_DIR", tempDir)

	if err := config.InitConfig(tempDir); err != nil {
		log.Fatalf("初始化配置失败: %v", err)
	}

	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer app.Cleanup()

	container := di.GetContainer()
	workflow := container.Get("workflow").(*services.WorkflowService)
	generation := container.Get("generation").(*services.GenerationService)
	library := container.Get("library").(*services.LibraryService)
	session := container.Get("session").(*services.SessionService)
	scripts := container.Get("script").(*services.ScriptService)
	audioSvc := container.Get("audio").(*services.AudioService)

	// 切换到模拟提供者
	if err := generation.UpdateProvider("mock", map[string]string{"api_key": "demo"}); err != nil {
		log.Fatalf("切换模拟提供者失败: %v", err)
	}

	ctx := context.Background()

	// 1. 语音便签提取
	fmt.Println("\n📋 步骤1: 从语音便签提取表单字段")
	fakeAudio := audio.EncodeBase64([]byte("demo audio bytes"))
	fields, err := generation.ExtractFromAudio(ctx, fakeAudio, "audio/webm")
	if err != nil {
		log.Fatalf("提取失败: %v", err)
	}
	fmt.Printf("   提取结果: %s @ %s\n", fields.OwnerName, fields.BusinessName)

	view := workflow.MergeExtraction(fields)
	fmt.Printf("   已合并到表单，当前状态: %s\n", view.Status)

	// 2. 调整语气，语音角色随之切换
	fmt.Println("\n🎙️ 步骤2: 切换语气")
	tone := "professional"
	view, err = workflow.UpdateInput(&services.InputPatch{Tone: &tone})
	if err != nil {
		log.Fatalf("更新表单失败: %v", err)
	}
	fmt.Printf("   语气=%s 语音角色=%s\n", view.Input.Tone, view.Input.Voice)

	// 3. 生成脚本
	fmt.Println("\n✨ 步骤3: 生成脚本")
	view, err = workflow.Submit(ctx)
	if err != nil {
		log.Fatalf("生成失败: %v", err)
	}
	fmt.Printf("   状态=%s 预计时长=%d秒 节奏=%s\n", view.Status, view.EstimatedSeconds, view.Pacing)
	fmt.Printf("   脚本:\n%s\n", view.Result.Script)
	fmt.Printf("   跟进消息: %s\n", view.Result.FollowUp)

	// 4. 语音合成与播放
	fmt.Println("\n🔊 步骤4: 合成并播放")
	clip, err := audioSvc.Synthesize(ctx, view.Result.Script, view.Input.Voice, string(view.Input.Tone))
	if err != nil {
		log.Fatalf("合成失败: %v", err)
	}
	fmt.Printf("   片段 %s: %.1f秒 @ %dHz\n", clip.ID, clip.Seconds, clip.SampleRate)

	wav, err := audioSvc.GetWAV(clip.ID)
	if err != nil {
		log.Fatalf("导出WAV失败: %v", err)
	}
	fmt.Printf("   WAV大小: %d字节\n", len(wav))

	if _, err := audioSvc.Play(clip.ID); err != nil {
		log.Fatalf("播放失败: %v", err)
	}
	audioSvc.Stop()

	// 5. 保存到脚本库并设为风格范例
	fmt.Println("\n📚 步骤5: 保存与检索")
	cleaned := scripts.StripTimingMarkers(view.Result.Script)
	saved, err := library.Save("", cleaned, view.Input.OwnerName, view.Input.BusinessName)
	if err != nil {
		log.Fatalf("保存失败: %v", err)
	}
	fmt.Printf("   已保存: %s (%s)\n", saved.Title, saved.ID)

	matches, err := library.Filter("plumbing")
	if err != nil {
		log.Fatalf("检索失败: %v", err)
	}
	fmt.Printf("   关键词 plumbing 命中 %d 条\n", len(matches))

	if err := session.SetStyleReference(&models.StyleReference{
		ScriptID: saved.ID,
		Content:  saved.Content,
	}); err != nil {
		log.Fatalf("设置风格引用失败: %v", err)
	}
	fmt.Println("   已将保存的脚本设为风格范例")

	// 6. 运行指标
	fmt.Println("\n📊 步骤6: 运行指标")
	snapshot := utils.GetMetrics().GetSnapshot()
	for name, op := range snapshot.Operations {
		fmt.Printf("   %s: 成功=%d 失败=%d 平均耗时=%dms\n", name, op.Success, op.Failure, op.AvgMs)
	}

	fmt.Println("\n✅ 演示完成")
}
