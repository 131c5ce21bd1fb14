// internal/audio/player.go
package audio

import (
	"sync"
	"time"
)

// Clip 一段可播放的合成语音
type Clip struct {
	ID         string
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration 片段时长
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / 2 / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// Player 管理合成片段的播放状态。
// 同一时刻最多只有一个片段在播放；开始新的播放会先停止当前的。
// 播放完成通过回调通知并清除播放状态。
type Player struct {
	mu       sync.Mutex
	activeID string
	timer    *time.Timer
	onEnded  func(clipID string)
}

// NewPlayer 创建播放控制器。onEnded 在片段自然播完时调用，
// 主动 Stop 或被新播放替换时不调用。
func NewPlayer(onEnded func(clipID string)) *Player {
	return &Player{onEnded: onEnded}
}

// Play 开始播放一个片段，停止任何正在播放的片段
func (p *Player) Play(clip *Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 先释放当前片段
	p.stopLocked()

	p.activeID = clip.ID
	duration := clip.Duration()

	clipID := clip.ID
	p.timer = time.AfterFunc(duration, func() {
		p.clipEnded(clipID)
	})
}

// clipEnded 处理定时器到点。定时器触发后可能在取得锁之前
// 片段已被Stop或新播放替换，此时不算自然播完，不触发回调。
func (p *Player) clipEnded(clipID string) {
	p.mu.Lock()
	ended := p.activeID == clipID
	if ended {
		p.activeID = ""
		p.timer = nil
	}
	p.mu.Unlock()

	if ended && p.onEnded != nil {
		p.onEnded(clipID)
	}
}

// Stop 停止当前播放。重复调用无害。
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.activeID = ""
}

// ActiveClip 返回当前正在播放的片段ID，未播放时为空串
func (p *Player) ActiveClip() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID
}

// IsPlaying 是否有片段正在播放
func (p *Player) IsPlaying() bool {
	return p.ActiveClip() != ""
}
