// internal/services/script_service.go
package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Pacing 时长估算的展示分档
type Pacing string

const (
	PacingTooShort   Pacing = "too_short"
	PacingAcceptable Pacing = "acceptable"
	PacingTooLong    Pacing = "too_long"
)

// 语速与分档阈值。
// 140词/60秒的固定语速；低于30秒偏短，超过60秒偏长。
const (
	wordsPerMinute    = 140.0
	tooShortThreshold = 30.0
	tooLongThreshold  = 60.0
)

// 计时标记形如 [0-5s]，是嵌在脚本文本中的展示约定，
// 在时长估算和语音合成前都必须剥离。
var timingMarkerPattern = regexp.MustCompile(`\[[^\]]*\]`)
var multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)

// ScriptService 提供脚本文本的派生计算
type ScriptService struct{}

// NewScriptService 创建脚本服务
func NewScriptService() *ScriptService {
	return &ScriptService{}
}

// StripTimingMarkers 剥离方括号计时标记并整理空白
func (s *ScriptService) StripTimingMarkers(text string) string {
	stripped := timingMarkerPattern.ReplaceAllString(text, "")
	stripped = multiSpacePattern.ReplaceAllString(stripped, " ")

	// 逐行修剪，保留段落结构
	lines := strings.Split(stripped, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// WordCount 统计剥离计时标记后的词数
func (s *ScriptService) WordCount(text string) int {
	return len(strings.Fields(s.StripTimingMarkers(text)))
}

// EstimateSeconds 按固定语速估算口播时长（秒），仅用于展示
func (s *ScriptService) EstimateSeconds(text string) int {
	words := s.WordCount(text)
	return int(math.Round(float64(words) / wordsPerMinute * 60.0))
}

// PacingFor 将估算时长归入三个互不重叠的展示分档
func (s *ScriptService) PacingFor(text string) (int, Pacing) {
	seconds := s.EstimateSeconds(text)
	switch {
	case float64(seconds) < tooShortThreshold:
		return seconds, PacingTooShort
	case float64(seconds) <= tooLongThreshold:
		return seconds, PacingAcceptable
	default:
		return seconds, PacingTooLong
	}
}

// DeriveTitle 为保存的脚本派生默认标题
func (s *ScriptService) DeriveTitle(ownerName, businessName string) string {
	owner := strings.TrimSpace(ownerName)
	business := strings.TrimSpace(businessName)

	switch {
	case owner != "" && business != "":
		return fmt.Sprintf("%s - %s", owner, business)
	case owner != "":
		return owner
	case business != "":
		return business
	default:
		return "Untitled script"
	}
}
