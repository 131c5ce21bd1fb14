// internal/models/generation.go
package models

// Platform 投放平台（固定集合）
type Platform string

const (
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformEmail     Platform = "email"
)

// Tone 语音便签的语气（固定集合）
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneDirect       Tone = "direct"
	ToneWarm         Tone = "warm"
)

// Goal 外联目标（固定集合）
type Goal string

const (
	GoalBookCall          Goal = "book_call"
	GoalGetReply          Goal = "get_reply"
	GoalStartConversation Goal = "start_conversation"
)

// ValidPlatforms 平台合法值集合
var ValidPlatforms = map[Platform]bool{
	PlatformWhatsApp:  true,
	PlatformInstagram: true,
	PlatformLinkedIn:  true,
	PlatformEmail:     true,
}

// ValidTones 语气合法值集合
var ValidTones = map[Tone]bool{
	ToneCasual:       true,
	ToneProfessional: true,
	ToneDirect:       true,
	ToneWarm:         true,
}

// ValidGoals 目标合法值集合
var ValidGoals = map[Goal]bool{
	GoalBookCall:          true,
	GoalGetReply:          true,
	GoalStartConversation: true,
}

// ToneVoiceMap 语气到语音角色的固定映射。
// 更改语气会确定性地覆盖所选角色，之后用户仍可手动覆盖。
var ToneVoiceMap = map[Tone]string{
	ToneCasual:       "Puck",
	ToneProfessional: "Charon",
	ToneDirect:       "Kore",
	ToneWarm:         "Aoede",
}

// GenerationInput 表单输入记录，由工作流控制器就地修改
type GenerationInput struct {
	OwnerName     string   `json:"owner_name"`
	BusinessName  string   `json:"business_name"`
	IdentifiedGap string   `json:"identified_gap"`
	FreeValue     string   `json:"free_value"`
	Platform      Platform `json:"platform"`
	Tone          Tone     `json:"tone"`
	Goal          Goal     `json:"goal"`
	TemplateID    string   `json:"template_id,omitempty"`
	StyleRefID    string   `json:"style_ref_id,omitempty"`
	Voice         string   `json:"voice"`
}

// GenerationResult 一次生成调用的产物，在下一次调用前不可变
type GenerationResult struct {
	Script   string `json:"script"`
	FollowUp string `json:"follow_up"`
}

// ExtractedFields 语音提取得到的部分表单字段。
// 只包含模型实际填充的字段，调用方与现有表单状态合并，空值不覆盖。
type ExtractedFields struct {
	OwnerName     string `json:"owner_name,omitempty"`
	BusinessName  string `json:"business_name,omitempty"`
	IdentifiedGap string `json:"identified_gap,omitempty"`
	FreeValue     string `json:"free_value,omitempty"`
}

// GenerationStatus 工作流状态机的四个状态
type GenerationStatus string

const (
	StatusIdle    GenerationStatus = "idle"
	StatusLoading GenerationStatus = "loading"
	StatusSuccess GenerationStatus = "success"
	StatusError   GenerationStatus = "error"
)
