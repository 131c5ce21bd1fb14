// internal/audio/pcm_test.go
package audio

import (
	"encoding/binary"
	"testing"
)

// pcmBytes 将int16采样序列编码为小端字节流
func pcmBytes(samples ...int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

func TestDecodePCM16Mono(t *testing.T) {
	data := pcmBytes(16384, -16384, 32767, -32768)

	buf, err := DecodePCM16(data, 24000, 1)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	if buf.Channels != 1 || buf.SampleRate != 24000 {
		t.Errorf("缓冲区参数不匹配: channels=%d rate=%d", buf.Channels, buf.SampleRate)
	}
	if buf.FrameCount() != 4 {
		t.Fatalf("帧数不匹配: 期望4，实际 %d", buf.FrameCount())
	}

	expected := []float32{0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i, want := range expected {
		if got := buf.Samples[0][i]; got != want {
			t.Errorf("采样 %d: 期望 %v，实际 %v", i, want, got)
		}
	}
}

func TestDecodePCM16Stereo(t *testing.T) {
	// 交错立体声: L0 R0 L1 R1
	data := pcmBytes(16384, -16384, 8192, -8192)

	buf, err := DecodePCM16(data, 48000, 2)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	if buf.FrameCount() != 2 {
		t.Fatalf("帧数不匹配: 期望2，实际 %d", buf.FrameCount())
	}

	if buf.Samples[0][0] != 0.5 || buf.Samples[0][1] != 0.25 {
		t.Errorf("左声道不匹配: %v", buf.Samples[0])
	}
	if buf.Samples[1][0] != -0.5 || buf.Samples[1][1] != -0.25 {
		t.Errorf("右声道不匹配: %v", buf.Samples[1])
	}
}

func TestDecodePCM16Invalid(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		sampleRate int
		channels   int
	}{
		{"奇数字节", []byte{0x01, 0x02, 0x03}, 24000, 1},
		{"零声道", pcmBytes(1, 2), 24000, 0},
		{"零采样率", pcmBytes(1, 2), 0, 1},
		{"采样数不能按声道整除", pcmBytes(1, 2, 3), 24000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePCM16(tt.data, tt.sampleRate, tt.channels); err == nil {
				t.Error("期望解码失败")
			}
		})
	}
}

func TestBufferDuration(t *testing.T) {
	// 24000帧 @ 24000Hz = 1秒
	data := make([]byte, 24000*2)
	buf, err := DecodePCM16(data, 24000, 1)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	if buf.Duration() != 1.0 {
		t.Errorf("时长不匹配: 期望1.0秒，实际 %v", buf.Duration())
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := pcmBytes(100, -100, 200, -200)

	wav, err := EncodeWAV(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}

	if len(wav) != 44+len(pcm) {
		t.Fatalf("WAV大小不匹配: 期望 %d，实际 %d", 44+len(pcm), len(wav))
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("RIFF/WAVE魔数不匹配")
	}
	if string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		t.Error("块标识不匹配")
	}

	if binary.LittleEndian.Uint16(wav[20:22]) != 1 {
		t.Error("音频格式应为PCM(1)")
	}
	if binary.LittleEndian.Uint16(wav[22:24]) != 1 {
		t.Error("声道数不匹配")
	}
	if binary.LittleEndian.Uint32(wav[24:28]) != 24000 {
		t.Error("采样率不匹配")
	}
	if binary.LittleEndian.Uint16(wav[34:36]) != 16 {
		t.Error("位深不匹配")
	}
	if binary.LittleEndian.Uint32(wav[40:44]) != uint32(len(pcm)) {
		t.Error("data块大小不匹配")
	}

	// 数据区与原始PCM一致
	for i, b := range pcm {
		if wav[44+i] != b {
			t.Fatalf("数据区第 %d 字节不匹配", i)
		}
	}
}

func TestBase64RoundTrip(t *testing.T) {
	raw := pcmBytes(1, -1, 12345)

	encoded := EncodeBase64(raw)
	decoded, err := DecodeBase64(encoded)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	if len(decoded) != len(raw) {
		t.Fatalf("长度不匹配: %d vs %d", len(decoded), len(raw))
	}
	for i := range raw {
		if decoded[i] != raw[i] {
			t.Fatalf("第 %d 字节不匹配", i)
		}
	}

	if _, err := DecodeBase64("not!!base64"); err == nil {
		t.Error("非法base64应当解码失败")
	}
}
