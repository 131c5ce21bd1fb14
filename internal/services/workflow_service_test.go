// internal/services/workflow_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
)

// newTestWorkflow 组装一套指向临时存储和stub提供者的工作流服务
func newTestWorkflow(t *testing.T, stub *stubProvider) (*WorkflowService, *SessionService, *TemplateService) {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}

	scripts := NewScriptService()
	generation := newStubbedGeneration(stub)
	templates := NewTemplateService(store)
	session := NewSessionService(store)
	library := NewLibraryService(store, scripts)

	return NewWorkflowService(generation, templates, session, library, scripts), session, templates
}

func strPtr(s string) *string { return &s }

func fillRequiredFields(t *testing.T, workflow *WorkflowService) {
	t.Helper()

	_, err := workflow.UpdateInput(&InputPatch{
		OwnerName:     strPtr("Mike"),
		BusinessName:  strPtr("Miller Plumbing"),
		IdentifiedGap: strPtr("no booking form on the website"),
		FreeValue:     strPtr("a free booking page mockup"),
	})
	if err != nil {
		t.Fatalf("填写表单失败: %v", err)
	}
}

func TestWorkflowDefaults(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	view := workflow.Snapshot()
	if view.Status != models.StatusIdle {
		t.Errorf("初始状态应为idle: %s", view.Status)
	}
	if view.Input.Platform != models.PlatformWhatsApp {
		t.Errorf("默认平台不匹配: %s", view.Input.Platform)
	}
	if view.Input.Tone != models.ToneCasual {
		t.Errorf("默认语气不匹配: %s", view.Input.Tone)
	}
	if view.Input.Goal != models.GoalBookCall {
		t.Errorf("默认目标不匹配: %s", view.Input.Goal)
	}
	if view.Input.Voice != "Puck" {
		t.Errorf("默认语音角色应随语气: %s", view.Input.Voice)
	}
}

func TestWorkflowToneDrivesVoice(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	tests := []struct {
		tone  string
		voice string
	}{
		{"professional", "Charon"},
		{"direct", "Kore"},
		{"warm", "Aoede"},
		{"casual", "Puck"},
	}

	for _, tt := range tests {
		view, err := workflow.UpdateInput(&InputPatch{Tone: strPtr(tt.tone)})
		if err != nil {
			t.Fatalf("更新语气失败: %v", err)
		}
		if view.Input.Voice != tt.voice {
			t.Errorf("语气 %s: 期望语音 %s，实际 %s", tt.tone, tt.voice, view.Input.Voice)
		}
	}
}

func TestWorkflowManualVoiceOverride(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	// 手动覆盖语音角色
	view, err := workflow.UpdateInput(&InputPatch{Voice: strPtr("Kore")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if view.Input.Voice != "Kore" {
		t.Errorf("手动覆盖未生效: %s", view.Input.Voice)
	}

	// 与语气同时提交时语气先重设，再应用显式语音
	view, err = workflow.UpdateInput(&InputPatch{Tone: strPtr("warm"), Voice: strPtr("Puck")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if view.Input.Voice != "Puck" {
		t.Errorf("显式语音应覆盖语气映射: %s", view.Input.Voice)
	}

	// 其后语气再次变化会重设语音
	view, err = workflow.UpdateInput(&InputPatch{Tone: strPtr("direct")})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if view.Input.Voice != "Kore" {
		t.Errorf("语气变化应重设语音: %s", view.Input.Voice)
	}
}

func TestWorkflowRejectsUnknownEnums(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	tests := []struct {
		name  string
		patch InputPatch
		field string
	}{
		{"未知平台", InputPatch{Platform: strPtr("telegram")}, "platform"},
		{"未知语气", InputPatch{Tone: strPtr("aggressive")}, "tone"},
		{"未知目标", InputPatch{Goal: strPtr("sell_now")}, "goal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.UpdateInput(&tt.patch)
			if !apperrors.IsValidationError(err) {
				t.Fatalf("期望验证错误，实际 %v", err)
			}
			if apperrors.ValidationField(err) != tt.field {
				t.Errorf("错误字段不匹配: %s", apperrors.ValidationField(err))
			}
		})
	}
}

func TestWorkflowMergeExtraction(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	if _, err := workflow.UpdateInput(&InputPatch{OwnerName: strPtr("Existing")}); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	view := workflow.MergeExtraction(&models.ExtractedFields{
		BusinessName:  "Miller Plumbing",
		IdentifiedGap: "no booking form",
	})

	// 空字段不覆盖已有值
	if view.Input.OwnerName != "Existing" {
		t.Errorf("空提取值不应覆盖: %s", view.Input.OwnerName)
	}
	if view.Input.BusinessName != "Miller Plumbing" {
		t.Errorf("非空提取值应合并: %s", view.Input.BusinessName)
	}
	if view.Input.IdentifiedGap != "no booking form" {
		t.Errorf("非空提取值应合并: %s", view.Input.IdentifiedGap)
	}
}

func TestWorkflowValidation(t *testing.T) {
	tests := []struct {
		name  string
		input models.GenerationInput
		field string
	}{
		{"全空", models.GenerationInput{}, "owner_name"},
		{
			"单字符姓名",
			models.GenerationInput{OwnerName: "M", BusinessName: "MP", IdentifiedGap: "gg", FreeValue: "vv"},
			"owner_name",
		},
		{
			"空白商户名",
			models.GenerationInput{OwnerName: "Mike", BusinessName: "   ", IdentifiedGap: "gg", FreeValue: "vv"},
			"business_name",
		},
		{
			"缺免费价值",
			models.GenerationInput{OwnerName: "Mike", BusinessName: "MP", IdentifiedGap: "gg", FreeValue: "v"},
			"free_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.input)
			if !apperrors.IsValidationError(err) {
				t.Fatalf("期望验证错误，实际 %v", err)
			}
			if apperrors.ValidationField(err) != tt.field {
				t.Errorf("错误字段不匹配: 期望 %s，实际 %s", tt.field, apperrors.ValidationField(err))
			}
		})
	}

	// 两个汉字按字符数计算也应通过
	ok := models.GenerationInput{OwnerName: "小王", BusinessName: "面馆", IdentifiedGap: "缺少预约", FreeValue: "免费页面"}
	if err := Validate(&ok); err != nil {
		t.Errorf("多字节字符应按字符数验证: %v", err)
	}
}

func TestWorkflowSubmitValidationKeepsState(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t, &stubProvider{})

	_, err := workflow.Submit(context.Background())
	if !apperrors.IsValidationError(err) {
		t.Fatalf("空表单提交应返回验证错误，实际 %v", err)
	}

	// 验证失败不改变状态
	if workflow.Status() != models.StatusIdle {
		t.Errorf("验证失败后状态应保持idle: %s", workflow.Status())
	}
}

func TestWorkflowSubmitSuccess(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"script":"[0-5s] Hey Mike, saw the site.","follow_up":"Following up!"}`,
	}
	workflow, _, _ := newTestWorkflow(t, stub)
	fillRequiredFields(t, workflow)

	view, err := workflow.Submit(context.Background())
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	if view.Status != models.StatusSuccess {
		t.Errorf("状态应为success: %s", view.Status)
	}
	if view.Result == nil || view.Result.Script == "" || view.Result.FollowUp == "" {
		t.Fatalf("结果缺失: %+v", view.Result)
	}
	if view.Pacing == "" {
		t.Error("成功后应给出节奏分档")
	}
}

func TestWorkflowSubmitRejectsReentry(t *testing.T) {
	release := make(chan struct{})
	stub := &stubProvider{
		textReply: `{"script":"done","follow_up":"f"}`,
		textBlock: release,
	}
	workflow, _, _ := newTestWorkflow(t, stub)
	fillRequiredFields(t, workflow)

	done := make(chan error, 1)
	go func() {
		_, err := workflow.Submit(context.Background())
		done <- err
	}()

	// 等待第一个请求进入loading
	deadline := time.Now().Add(time.Second)
	for workflow.Snapshot().Status != models.StatusLoading {
		if time.Now().After(deadline) {
			t.Fatal("首个提交未进入loading状态")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := workflow.Submit(context.Background())
	if !apperrors.IsConflictError(err) {
		t.Errorf("加载中重复提交应返回冲突错误，实际 %v", err)
	}
	if got := workflow.Snapshot().Status; got != models.StatusLoading {
		t.Errorf("拒绝重入不应改变状态: %s", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("首个提交应正常完成: %v", err)
	}
	if got := workflow.Snapshot().Status; got != models.StatusSuccess {
		t.Errorf("首个提交完成后状态应为success: %s", got)
	}
}

func TestWorkflowSubmitBackendError(t *testing.T) {
	stub := &stubProvider{textErr: context.DeadlineExceeded}
	workflow, _, _ := newTestWorkflow(t, stub)
	fillRequiredFields(t, workflow)

	_, err := workflow.Submit(context.Background())
	if !apperrors.IsBackendError(err) {
		t.Fatalf("后端失败应返回后端错误，实际 %v", err)
	}

	if workflow.Status() != models.StatusError {
		t.Errorf("失败后状态应为error: %s", workflow.Status())
	}

	// 失败后可以再次提交
	stub.textErr = nil
	stub.textReply = `{"script":"retry works","follow_up":"ok"}`
	view, err := workflow.Submit(context.Background())
	if err != nil {
		t.Fatalf("重试提交失败: %v", err)
	}
	if view.Status != models.StatusSuccess {
		t.Errorf("重试后状态应为success: %s", view.Status)
	}
}

func TestWorkflowSubmitUsesStyleReference(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"script":"styled","follow_up":"f"}`,
	}
	workflow, session, _ := newTestWorkflow(t, stub)
	fillRequiredFields(t, workflow)

	if err := session.SetStyleReference(&models.StyleReference{
		ScriptID: "999",
		Content:  "PREVIOUSLY APPROVED SCRIPT",
	}); err != nil {
		t.Fatalf("设置风格引用失败: %v", err)
	}

	if _, err := workflow.Submit(context.Background()); err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	if !strings.Contains(stub.lastText.Prompt, "PREVIOUSLY APPROVED SCRIPT") {
		t.Error("提示应包含风格引用脚本")
	}
}

func TestWorkflowSubmitDanglingTemplateFallsBack(t *testing.T) {
	stub := &stubProvider{
		textReply: `{"script":"s","follow_up":"f"}`,
	}
	workflow, _, _ := newTestWorkflow(t, stub)
	fillRequiredFields(t, workflow)

	// 指向不存在的模板
	if _, err := workflow.UpdateInput(&InputPatch{TemplateID: strPtr("999999")}); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	if _, err := workflow.Submit(context.Background()); err != nil {
		t.Fatalf("悬空模板引用不应阻止生成: %v", err)
	}

	// 悬空引用回退到内置示例
	if !strings.Contains(stub.lastText.Prompt, "Brightside Bakery") {
		t.Error("悬空模板引用应回退到内置示例")
	}
}
