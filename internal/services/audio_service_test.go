// internal/services/audio_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/llm"
)

// newTestAudio 创建绑定stub语音后端的音频服务
func newTestAudio(pcmBytes int) *AudioService {
	stub := &stubProvider{
		speechReply: &llm.SpeechResponse{
			Data:       make([]byte, pcmBytes),
			SampleRate: 24000,
			Channels:   1,
		},
	}
	return NewAudioService(newStubbedGeneration(stub))
}

func TestAudioSynthesizeAndExport(t *testing.T) {
	// 24000帧 = 1秒
	service := newTestAudio(24000 * 2)

	clip, err := service.Synthesize(context.Background(), "[0-5s] Hello Mike", "Puck", "casual")
	if err != nil {
		t.Fatalf("合成失败: %v", err)
	}

	if clip.SampleRate != 24000 || clip.Channels != 1 {
		t.Errorf("片段参数不匹配: %+v", clip)
	}
	if clip.Seconds != 1.0 {
		t.Errorf("时长不匹配: 期望1.0秒，实际 %v", clip.Seconds)
	}

	wav, err := service.GetWAV(clip.ID)
	if err != nil {
		t.Fatalf("导出WAV失败: %v", err)
	}
	if len(wav) != 44+24000*2 {
		t.Errorf("WAV大小不匹配: %d", len(wav))
	}

	buffer, err := service.Decode(clip.ID)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if buffer.FrameCount() != 24000 {
		t.Errorf("帧数不匹配: %d", buffer.FrameCount())
	}
}

func TestAudioClipNotFound(t *testing.T) {
	service := newTestAudio(100)

	if _, err := service.GetWAV("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("期望 NotFound 错误，实际 %v", err)
	}
	if _, err := service.Play("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("期望 NotFound 错误，实际 %v", err)
	}
}

func TestAudioPlayAndStop(t *testing.T) {
	service := newTestAudio(24000 * 2 * 10) // 10秒，播不完

	clip, err := service.Synthesize(context.Background(), "Hello", "Puck", "casual")
	if err != nil {
		t.Fatalf("合成失败: %v", err)
	}

	if _, err := service.Play(clip.ID); err != nil {
		t.Fatalf("播放失败: %v", err)
	}

	active, playing := service.PlaybackState()
	if !playing || active != clip.ID {
		t.Errorf("播放状态不匹配: active=%s playing=%v", active, playing)
	}

	service.Stop()
	if _, playing := service.PlaybackState(); playing {
		t.Error("停止后不应处于播放状态")
	}

	// 重复停止无害
	service.Stop()
}

func TestAudioEvictsOldestClips(t *testing.T) {
	service := newTestAudio(100)

	var ids []string
	for i := 0; i < maxRetainedClips+2; i++ {
		clip, err := service.Synthesize(context.Background(), "Hello", "Puck", "casual")
		if err != nil {
			t.Fatalf("合成失败: %v", err)
		}
		ids = append(ids, clip.ID)
		time.Sleep(2 * time.Millisecond) // 时间戳ID需要唯一
	}

	// 最旧的两个片段被淘汰
	for _, id := range ids[:2] {
		if _, err := service.GetWAV(id); !apperrors.IsNotFoundError(err) {
			t.Errorf("最旧片段 %s 应已淘汰，实际 %v", id, err)
		}
	}

	// 其余片段仍可访问
	for _, id := range ids[2:] {
		if _, err := service.GetWAV(id); err != nil {
			t.Errorf("片段 %s 应仍可访问: %v", id, err)
		}
	}
}
