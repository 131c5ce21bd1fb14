// internal/audio/player_test.go
package audio

import (
	"sync"
	"testing"
	"time"
)

// shortClip 生成指定毫秒数的静音片段
func shortClip(id string, ms int) *Clip {
	const sampleRate = 1000
	frames := sampleRate * ms / 1000
	return &Clip{
		ID:         id,
		PCM:        make([]byte, frames*2),
		SampleRate: sampleRate,
		Channels:   1,
	}
}

func TestClipDuration(t *testing.T) {
	clip := shortClip("c1", 500)
	if clip.Duration() != 500*time.Millisecond {
		t.Errorf("时长不匹配: 期望500ms，实际 %v", clip.Duration())
	}

	empty := &Clip{ID: "bad"}
	if empty.Duration() != 0 {
		t.Errorf("无效片段时长应为0，实际 %v", empty.Duration())
	}
}

func TestPlayerPlayAndAutoEnd(t *testing.T) {
	var mu sync.Mutex
	var ended []string

	player := NewPlayer(func(clipID string) {
		mu.Lock()
		defer mu.Unlock()
		ended = append(ended, clipID)
	})

	player.Play(shortClip("c1", 30))

	if !player.IsPlaying() {
		t.Fatal("播放开始后应处于播放状态")
	}
	if player.ActiveClip() != "c1" {
		t.Errorf("活动片段不匹配: %s", player.ActiveClip())
	}

	// 等待自然播完
	deadline := time.Now().Add(time.Second)
	for player.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if player.IsPlaying() {
		t.Fatal("片段播完后状态未清除")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ended) != 1 || ended[0] != "c1" {
		t.Errorf("播放完成回调不匹配: %v", ended)
	}
}

func TestPlayerStop(t *testing.T) {
	var mu sync.Mutex
	var ended []string

	player := NewPlayer(func(clipID string) {
		mu.Lock()
		defer mu.Unlock()
		ended = append(ended, clipID)
	})

	player.Play(shortClip("c1", 5000))
	player.Stop()

	if player.IsPlaying() {
		t.Fatal("停止后不应处于播放状态")
	}

	// 重复停止无害
	player.Stop()

	// 主动停止不触发完成回调
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(ended) != 0 {
		t.Errorf("主动停止不应触发完成回调: %v", ended)
	}
}

func TestPlayerLateTimerSkipsEndedCallback(t *testing.T) {
	var mu sync.Mutex
	var ended []string

	player := NewPlayer(func(clipID string) {
		mu.Lock()
		defer mu.Unlock()
		ended = append(ended, clipID)
	})

	// 定时器到点后才取得锁时，片段可能已被停止或替换。
	// 直接驱动到点处理来复现这两种交错。
	player.Play(shortClip("c1", 5000))
	player.Stop()
	player.clipEnded("c1")

	player.Play(shortClip("c2", 5000))
	player.Play(shortClip("c3", 5000))
	player.clipEnded("c2")

	mu.Lock()
	got := len(ended)
	mu.Unlock()
	if got != 0 {
		t.Errorf("已停止或被替换的片段不应回调onEnded: %v", ended)
	}

	// 仍在播放的片段到点属于自然播完
	player.clipEnded("c3")

	mu.Lock()
	defer mu.Unlock()
	if len(ended) != 1 || ended[0] != "c3" {
		t.Errorf("自然播完回调不匹配: %v", ended)
	}
	if player.IsPlaying() {
		t.Error("自然播完后播放状态应清除")
	}
}

func TestPlayerReplacesActiveClip(t *testing.T) {
	player := NewPlayer(nil)

	player.Play(shortClip("c1", 5000))
	player.Play(shortClip("c2", 5000))

	if player.ActiveClip() != "c2" {
		t.Errorf("新播放应替换当前片段: %s", player.ActiveClip())
	}

	player.Stop()
}
