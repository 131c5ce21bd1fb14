// internal/api/handlers.go
package api

import (
	"net/http"

	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/services"
	"github.com/Corphon/PitchPilotMCP/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler API处理器，只持有从容器获取的服务
type Handler struct {
	WorkflowService   *services.WorkflowService
	GenerationService *services.GenerationService
	AudioService      *services.AudioService
	LibraryService    *services.LibraryService
	TemplateService   *services.TemplateService
	SessionService    *services.SessionService
	ConfigService     *services.ConfigService

	responseHelper *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	workflow *services.WorkflowService,
	generation *services.GenerationService,
	audio *services.AudioService,
	library *services.LibraryService,
	templates *services.TemplateService,
	session *services.SessionService,
	configService *services.ConfigService,
) *Handler {
	return &Handler{
		WorkflowService:   workflow,
		GenerationService: generation,
		AudioService:      audio,
		LibraryService:    library,
		TemplateService:   templates,
		SessionService:    session,
		ConfigService:     configService,
		responseHelper:    NewResponseHelper(),
	}
}

// ===============================
// 工作流 / 生成
// ===============================

// GetWorkflow 返回当前表单与状态快照
func (h *Handler) GetWorkflow(c *gin.Context) {
	h.responseHelper.Success(c, h.WorkflowService.Snapshot())
}

// UpdateWorkflowInput 应用表单增量更新
func (h *Handler) UpdateWorkflowInput(c *gin.Context) {
	var patch services.InputPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	view, err := h.WorkflowService.UpdateInput(&patch)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, view)
}

// Generate 提交脚本生成
func (h *Handler) Generate(c *gin.Context) {
	view, err := h.WorkflowService.Submit(c.Request.Context())
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, view, "生成完成")
}

// extractRequest 语音提取请求体
type extractRequest struct {
	AudioData string `json:"audio_data" binding:"required"`
	MimeType  string `json:"mime_type"`
}

// Extract 从录制的语音便签中提取表单字段并合并进工作流
func (h *Handler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	fields, err := h.GenerationService.ExtractFromAudio(c.Request.Context(), req.AudioData, req.MimeType)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	view := h.WorkflowService.MergeExtraction(fields)
	h.responseHelper.Success(c, gin.H{
		"extracted": fields,
		"workflow":  view,
	}, "提取完成")
}

// ===============================
// 语音合成 / 播放
// ===============================

// synthesizeRequest 语音合成请求体
type synthesizeRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
	Tone  string `json:"tone"`
}

// Synthesize 合成脚本语音，返回可播放片段信息
func (h *Handler) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	// 缺省取当前表单的语音与语气
	input := h.WorkflowService.CurrentInput()
	if req.Voice == "" {
		req.Voice = input.Voice
	}
	if req.Tone == "" {
		req.Tone = string(input.Tone)
	}

	clip, err := h.AudioService.Synthesize(c.Request.Context(), req.Text, req.Voice, req.Tone)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, clip, "合成完成")
}

// GetClipWAV 以WAV文件形式下载片段
func (h *Handler) GetClipWAV(c *gin.Context) {
	id := c.Param("id")

	wav, err := h.AudioService.GetWAV(id)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.FileResponse(c, wav, id+".wav", "audio/wav")
}

// PlayClip 开始播放片段，任何正在播放的片段先被停止
func (h *Handler) PlayClip(c *gin.Context) {
	clip, err := h.AudioService.Play(c.Param("id"))
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, clip, "开始播放")
}

// StopPlayback 停止播放
func (h *Handler) StopPlayback(c *gin.Context) {
	h.AudioService.Stop()
	h.responseHelper.Success(c, nil, "已停止播放")
}

// GetPlaybackState 返回播放状态
func (h *Handler) GetPlaybackState(c *gin.Context) {
	active, playing := h.AudioService.PlaybackState()
	h.responseHelper.Success(c, gin.H{
		"playing":     playing,
		"active_clip": active,
	})
}

// ===============================
// 脚本库
// ===============================

// GetScripts 列出已保存脚本，支持 query 参数过滤
func (h *Handler) GetScripts(c *gin.Context) {
	scripts, err := h.LibraryService.Filter(c.Query("query"))
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, scripts)
}

// saveScriptRequest 保存脚本请求体
type saveScriptRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	OwnerName    string `json:"owner_name"`
	BusinessName string `json:"business_name"`
}

// SaveScript 保存一条脚本。
// 请求体未携带内容时保存当前工作流的生成结果。
func (h *Handler) SaveScript(c *gin.Context) {
	var req saveScriptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
			return
		}
	}

	if req.Content == "" {
		result := h.WorkflowService.CurrentResult()
		if result == nil {
			h.responseHelper.BadRequest(c, "没有可保存的生成结果")
			return
		}
		input := h.WorkflowService.CurrentInput()
		req.Content = result.Script
		req.OwnerName = input.OwnerName
		req.BusinessName = input.BusinessName
	}

	script, err := h.LibraryService.Save(req.Title, req.Content, req.OwnerName, req.BusinessName)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Created(c, script, "脚本已保存")
}

// DeleteScript 删除一条脚本
func (h *Handler) DeleteScript(c *gin.Context) {
	if err := h.LibraryService.Delete(c.Param("id")); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, nil, "脚本已删除")
}

// UseScriptAsStyle 将脚本指定为风格范例并切回生成器标签页
func (h *Handler) UseScriptAsStyle(c *gin.Context) {
	script, err := h.LibraryService.Get(c.Param("id"))
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	ref := &models.StyleReference{
		ScriptID: script.ID,
		Content:  script.Content,
	}
	if err := h.SessionService.SetStyleReference(ref); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	// 选用风格后切换回生成器视图
	if err := h.SessionService.SetActiveTab(models.TabGenerator); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, gin.H{
		"style_reference": ref,
		"active_tab":      models.TabGenerator,
	}, "已设为风格范例")
}

// ===============================
// 模板
// ===============================

// templateRequest 模板创建/更新请求体
type templateRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// GetTemplates 列出自定义模板
func (h *Handler) GetTemplates(c *gin.Context) {
	templates, err := h.TemplateService.List()
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, templates)
}

// CreateTemplate 创建模板
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	template, err := h.TemplateService.Create(req.Name, req.Body)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Created(c, template, "模板已创建")
}

// UpdateTemplate 更新模板
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	template, err := h.TemplateService.Update(c.Param("id"), req.Name, req.Body)
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, template, "模板已更新")
}

// DeleteTemplate 删除模板
func (h *Handler) DeleteTemplate(c *gin.Context) {
	if err := h.TemplateService.Delete(c.Param("id")); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, nil, "模板已删除")
}

// ===============================
// 会话
// ===============================

// GetSession 读取会话状态
func (h *Handler) GetSession(c *gin.Context) {
	state, err := h.SessionService.GetState()
	if err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, state)
}

// setTabRequest 设置活动标签页请求体
type setTabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// SetActiveTab 持久化活动标签页
func (h *Handler) SetActiveTab(c *gin.Context) {
	var req setTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	if err := h.SessionService.SetActiveTab(req.Tab); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, gin.H{"active_tab": req.Tab})
}

// ClearStyleReference 清除风格引用
func (h *Handler) ClearStyleReference(c *gin.Context) {
	if err := h.SessionService.ClearStyleReference(); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, nil, "风格引用已清除")
}

// ===============================
// 设置 / 状态
// ===============================

// GetSettings 返回脱敏后的设置
func (h *Handler) GetSettings(c *gin.Context) {
	h.responseHelper.Success(c, h.ConfigService.GetSettings())
}

// updateLLMConfigRequest 更新LLM配置请求体
type updateLLMConfigRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// UpdateLLMConfig 更新AI提供商配置并热切换生成服务
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req updateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	if err := h.ConfigService.UpdateLLMSettings(req.Provider, req.APIKey, req.Model); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	if err := h.GenerationService.UpdateProvider(req.Provider, h.ConfigService.DecryptedLLMConfig()); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, h.ConfigService.GetSettings(), "配置已更新")
}

// TestConnection 测试AI后端连通性
func (h *Handler) TestConnection(c *gin.Context) {
	if err := h.GenerationService.TestConnection(c.Request.Context()); err != nil {
		h.responseHelper.AppError(c, err)
		return
	}

	h.responseHelper.Success(c, nil, "连接正常")
}

// GetLLMStatus 返回生成服务就绪状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	h.responseHelper.Success(c, gin.H{
		"ready":    h.GenerationService.IsReady(),
		"state":    h.GenerationService.GetReadyState(),
		"provider": h.GenerationService.GetProviderName(),
	})
}

// GetConfigHealth 配置健康检查
func (h *Handler) GetConfigHealth(c *gin.Context) {
	report := h.ConfigService.Health()
	if !report.Healthy {
		h.responseHelper.Error(c, http.StatusServiceUnavailable, ErrorConfigUnhealthy, "配置不健康")
		return
	}
	h.responseHelper.Success(c, report)
}

// GetMetrics 导出运行指标
func (h *Handler) GetMetrics(c *gin.Context) {
	h.responseHelper.Success(c, utils.GetMetrics().GetSnapshot())
}

// IndexInfo 根路径服务信息
func (h *Handler) IndexInfo(c *gin.Context) {
	h.responseHelper.Success(c, gin.H{
		"name":    "PitchPilotMCP",
		"version": "1.0",
	})
}
