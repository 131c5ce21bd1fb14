// internal/services/audio_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/PitchPilotMCP/internal/audio"
	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
)

// maxRetainedClips 内存中保留的最近合成片段数
const maxRetainedClips = 8

// ClipInfo 合成片段的元信息
type ClipInfo struct {
	ID         string  `json:"id"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Seconds    float64 `json:"seconds"`
}

// AudioService 管理合成片段与播放状态。
// 同一时刻最多一个片段在播放；新的播放会先停止当前的。
type AudioService struct {
	mu         sync.Mutex
	clips      map[string]*audio.Clip
	order      []string // 保留顺序，用于淘汰最旧片段
	player     *audio.Player
	generation *GenerationService
}

// NewAudioService 创建音频服务
func NewAudioService(generation *GenerationService) *AudioService {
	s := &AudioService{
		clips:      make(map[string]*audio.Clip),
		generation: generation,
	}

	// 播放完成回调清除播放状态（由 Player 内部完成）并记录日志
	s.player = audio.NewPlayer(func(clipID string) {
		utils.GetLogger().Debugf("片段播放完成: %s", clipID)
	})

	return s
}

// Synthesize 为脚本文本合成语音并登记为可播放片段
func (s *AudioService) Synthesize(ctx context.Context, text, voice, toneLabel string) (*ClipInfo, error) {
	resp, err := s.generation.SynthesizeSpeech(ctx, text, voice, toneLabel)
	if err != nil {
		return nil, err
	}

	clip := &audio.Clip{
		ID:         fmt.Sprintf("%d", time.Now().UnixMilli()),
		PCM:        resp.Data,
		SampleRate: resp.SampleRate,
		Channels:   resp.Channels,
	}

	s.mu.Lock()
	s.clips[clip.ID] = clip
	s.order = append(s.order, clip.ID)
	// 淘汰最旧的片段
	for len(s.order) > maxRetainedClips {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.clips, oldest)
	}
	s.mu.Unlock()

	return &ClipInfo{
		ID:         clip.ID,
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
		Seconds:    clip.Duration().Seconds(),
	}, nil
}

// getClip 取出片段
func (s *AudioService) getClip(id string) (*audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, exists := s.clips[id]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("音频片段不存在: %s", id), nil)
	}
	return clip, nil
}

// GetWAV 将片段包装为WAV文件内容
func (s *AudioService) GetWAV(id string) ([]byte, error) {
	clip, err := s.getClip(id)
	if err != nil {
		return nil, err
	}

	wav, err := audio.EncodeWAV(clip.PCM, clip.SampleRate, clip.Channels)
	if err != nil {
		return nil, apperrors.NewPlaybackError("编码WAV失败", err)
	}
	return wav, nil
}

// Decode 将片段解码为按声道归一化的浮点采样
func (s *AudioService) Decode(id string) (*audio.Buffer, error) {
	clip, err := s.getClip(id)
	if err != nil {
		return nil, err
	}

	buffer, err := audio.DecodePCM16(clip.PCM, clip.SampleRate, clip.Channels)
	if err != nil {
		return nil, apperrors.NewPlaybackError("解码PCM失败", err)
	}
	return buffer, nil
}

// Play 开始播放一个片段，任何正在播放的片段先被停止
func (s *AudioService) Play(id string) (*ClipInfo, error) {
	clip, err := s.getClip(id)
	if err != nil {
		return nil, err
	}

	s.player.Play(clip)
	utils.GetMetrics().RecordSuccess(utils.OpPlayback, 0)

	return &ClipInfo{
		ID:         clip.ID,
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
		Seconds:    clip.Duration().Seconds(),
	}, nil
}

// Stop 停止当前播放，重复调用无害
func (s *AudioService) Stop() {
	s.player.Stop()
}

// PlaybackState 当前播放状态
func (s *AudioService) PlaybackState() (string, bool) {
	active := s.player.ActiveClip()
	return active, active != ""
}
