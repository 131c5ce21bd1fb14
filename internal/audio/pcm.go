// internal/audio/pcm.go
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// Buffer 解码后的音频缓冲区。
// Samples 按声道拆分，每个采样为原始 16 位整数除以 32768，
// 归一化到 [-1, 1) 区间。
type Buffer struct {
	Samples    [][]float32
	SampleRate int
	Channels   int
}

// FrameCount 每声道的采样帧数
func (b *Buffer) FrameCount() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration 缓冲区时长（秒）
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// DecodePCM16 将原始小端16位PCM字节流解码为按声道归一化的浮点采样。
// 源缓冲区中的声道交错会被拆分到各自的采样数组中。
func DecodePCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, errors.New("声道数必须为正")
	}
	if sampleRate <= 0 {
		return nil, errors.New("采样率必须为正")
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM数据长度必须为偶数字节: %d", len(data))
	}

	totalSamples := len(data) / 2
	if totalSamples%channels != 0 {
		return nil, fmt.Errorf("采样数 %d 无法按 %d 个声道整除", totalSamples, channels)
	}

	frames := totalSamples / channels
	samples := make([][]float32, channels)
	for ch := range samples {
		samples[ch] = make([]float32, frames)
	}

	for i := 0; i < totalSamples; i++ {
		raw := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i%channels][i/channels] = float32(raw) / 32768.0
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// EncodeWAV 将原始16位PCM字节流包装为 RIFF/WAVE 文件内容，
// 使合成的片段可以作为普通音频文件下载播放。
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, errors.New("非法的WAV参数")
	}

	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)                    // fmt 块大小
	binary.LittleEndian.PutUint16(hdr[20:22], 1)                     // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))      // 声道数
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))    // 采样率
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))      // 字节率
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))    // 块对齐
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(bitsPerSample)) // 位深
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	return append(hdr, pcm...), nil
}

// DecodeBase64 解码 base64 音频数据
func DecodeBase64(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("解码base64音频数据失败: %w", err)
	}
	return raw, nil
}

// EncodeBase64 将音频字节编码为 base64 以便传输
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
