// internal/services/workflow_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
)

// requiredFieldMinLen 四个必填文本字段修剪后的最小长度
const requiredFieldMinLen = 2

// InputPatch 表单的增量更新；nil 字段表示未修改
type InputPatch struct {
	OwnerName     *string `json:"owner_name,omitempty"`
	BusinessName  *string `json:"business_name,omitempty"`
	IdentifiedGap *string `json:"identified_gap,omitempty"`
	FreeValue     *string `json:"free_value,omitempty"`
	Platform      *string `json:"platform,omitempty"`
	Tone          *string `json:"tone,omitempty"`
	Goal          *string `json:"goal,omitempty"`
	TemplateID    *string `json:"template_id,omitempty"`
	Voice         *string `json:"voice,omitempty"`
}

// WorkflowView 工作流状态快照
type WorkflowView struct {
	Input            models.GenerationInput   `json:"input"`
	Status           models.GenerationStatus  `json:"status"`
	Result           *models.GenerationResult `json:"result,omitempty"`
	ErrorMessage     string                   `json:"error_message,omitempty"`
	ErrorField       string                   `json:"error_field,omitempty"`
	EstimatedSeconds int                      `json:"estimated_seconds"`
	Pacing           Pacing                   `json:"pacing,omitempty"`
}

// WorkflowService 表单/工作流控制器。
// 拥有输入记录，运行字段验证，编排对生成客户端的调用，
// 并派生仅用于展示的时长估算。
// 状态机：Idle/Error/Success -> Loading（提交且验证通过时），
// Loading -> Success | Error。加载期间拒绝重入提交。
type WorkflowService struct {
	mu     sync.Mutex
	input  models.GenerationInput
	status models.GenerationStatus
	result *models.GenerationResult

	errorMessage string
	errorField   string

	generation *GenerationService
	templates  *TemplateService
	session    *SessionService
	library    *LibraryService
	scripts    *ScriptService
}

// NewWorkflowService 创建工作流控制器
func NewWorkflowService(generation *GenerationService, templates *TemplateService, session *SessionService, library *LibraryService, scripts *ScriptService) *WorkflowService {
	return &WorkflowService{
		input: models.GenerationInput{
			Platform: models.PlatformWhatsApp,
			Tone:     models.ToneCasual,
			Goal:     models.GoalBookCall,
			Voice:    models.ToneVoiceMap[models.ToneCasual],
		},
		status:     models.StatusIdle,
		generation: generation,
		templates:  templates,
		session:    session,
		library:    library,
		scripts:    scripts,
	}
}

// Snapshot 返回当前工作流视图
func (s *WorkflowService) Snapshot() *WorkflowView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &WorkflowView{
		Input:        s.input,
		Status:       s.status,
		Result:       s.result,
		ErrorMessage: s.errorMessage,
		ErrorField:   s.errorField,
	}

	if s.result != nil {
		view.EstimatedSeconds, view.Pacing = s.scripts.PacingFor(s.result.Script)
	}

	return view
}

// UpdateInput 应用表单增量更新。
// 修改语气会通过固定映射确定性地覆盖语音角色；
// 之后显式设置语音视为手动覆盖，保留到语气再次变化为止。
func (s *WorkflowService) UpdateInput(patch *InputPatch) (*WorkflowView, error) {
	s.mu.Lock()

	if patch.OwnerName != nil {
		s.input.OwnerName = *patch.OwnerName
	}
	if patch.BusinessName != nil {
		s.input.BusinessName = *patch.BusinessName
	}
	if patch.IdentifiedGap != nil {
		s.input.IdentifiedGap = *patch.IdentifiedGap
	}
	if patch.FreeValue != nil {
		s.input.FreeValue = *patch.FreeValue
	}

	if patch.Platform != nil {
		platform := models.Platform(*patch.Platform)
		if !models.ValidPlatforms[platform] {
			s.mu.Unlock()
			return nil, apperrors.NewFieldValidationError("platform", "未知的平台: "+*patch.Platform)
		}
		s.input.Platform = platform
	}

	if patch.Goal != nil {
		goal := models.Goal(*patch.Goal)
		if !models.ValidGoals[goal] {
			s.mu.Unlock()
			return nil, apperrors.NewFieldValidationError("goal", "未知的目标: "+*patch.Goal)
		}
		s.input.Goal = goal
	}

	if patch.Tone != nil {
		tone := models.Tone(*patch.Tone)
		if !models.ValidTones[tone] {
			s.mu.Unlock()
			return nil, apperrors.NewFieldValidationError("tone", "未知的语气: "+*patch.Tone)
		}
		s.input.Tone = tone
		// 语气变化确定性地重设语音角色
		s.input.Voice = models.ToneVoiceMap[tone]
	}

	// 语音的显式设置在语气重设之后应用，构成手动覆盖
	if patch.Voice != nil && *patch.Voice != "" {
		s.input.Voice = *patch.Voice
	}

	if patch.TemplateID != nil {
		s.input.TemplateID = *patch.TemplateID
	}

	s.mu.Unlock()
	return s.Snapshot(), nil
}

// MergeExtraction 将语音提取结果合并进表单状态。
// 只有非空的提取值才会覆盖现有字段。
func (s *WorkflowService) MergeExtraction(fields *models.ExtractedFields) *WorkflowView {
	s.mu.Lock()

	if fields.OwnerName != "" {
		s.input.OwnerName = fields.OwnerName
	}
	if fields.BusinessName != "" {
		s.input.BusinessName = fields.BusinessName
	}
	if fields.IdentifiedGap != "" {
		s.input.IdentifiedGap = fields.IdentifiedGap
	}
	if fields.FreeValue != "" {
		s.input.FreeValue = fields.FreeValue
	}

	s.mu.Unlock()
	return s.Snapshot()
}

// requiredField 验证顺序固定的必填字段描述
type requiredField struct {
	name  string
	label string
	value func(*models.GenerationInput) string
}

var requiredFields = []requiredField{
	{"owner_name", "联系人姓名", func(in *models.GenerationInput) string { return in.OwnerName }},
	{"business_name", "商户名称", func(in *models.GenerationInput) string { return in.BusinessName }},
	{"identified_gap", "发现的问题", func(in *models.GenerationInput) string { return in.IdentifiedGap }},
	{"free_value", "免费价值", func(in *models.GenerationInput) string { return in.FreeValue }},
}

// Validate 检查四个必填文本字段（修剪后至少两个字符）。
// 返回第一个未通过的字段错误；验证失败不改变工作流状态。
func Validate(input *models.GenerationInput) error {
	for _, field := range requiredFields {
		value := strings.TrimSpace(field.value(input))
		if len([]rune(value)) < requiredFieldMinLen {
			return apperrors.NewFieldValidationError(field.name,
				fmt.Sprintf("%s至少需要%d个字符", field.label, requiredFieldMinLen))
		}
	}
	return nil
}

// Submit 提交生成请求。
// 验证失败时保持状态不变并返回字段级错误，不调用后端。
// 已在加载中时拒绝重入。backendCall 挂起期间不持有锁。
func (s *WorkflowService) Submit(ctx context.Context) (*WorkflowView, error) {
	s.mu.Lock()

	if s.status == models.StatusLoading {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("已有生成请求在处理中", nil)
	}

	if err := Validate(&s.input); err != nil {
		// 状态保持不变
		s.mu.Unlock()
		return nil, err
	}

	input := s.input
	s.status = models.StatusLoading
	s.errorMessage = ""
	s.errorField = ""
	s.mu.Unlock()

	// 解析可选模板；悬空引用回退到内置示例
	var template *models.CustomTemplate
	if input.TemplateID != "" {
		if found, err := s.templates.Get(input.TemplateID); err == nil {
			template = found
		}
	}

	// 解析可选的风格引用
	referenceScript := ""
	if ref, err := s.session.GetStyleReference(); err == nil && ref != nil {
		referenceScript = ref.Content
		input.StyleRefID = ref.ScriptID
	}

	result, err := s.generation.GenerateScript(ctx, &input, template, referenceScript)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.status = models.StatusError
		s.errorMessage = err.Error()
		s.errorField = apperrors.ValidationField(err)
		utils.GetLogger().Warn("生成请求失败", map[string]interface{}{
			"err": err.Error(),
		})
		return nil, err
	}

	s.status = models.StatusSuccess
	s.result = result
	s.errorMessage = ""
	s.errorField = ""

	view := &WorkflowView{
		Input:  s.input,
		Status: s.status,
		Result: s.result,
	}
	view.EstimatedSeconds, view.Pacing = s.scripts.PacingFor(result.Script)
	return view, nil
}

// Status 返回当前状态
func (s *WorkflowService) Status() models.GenerationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentInput 返回当前输入记录的副本
func (s *WorkflowService) CurrentInput() models.GenerationInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// CurrentResult 返回最近一次生成结果，无则为 nil
func (s *WorkflowService) CurrentResult() *models.GenerationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
