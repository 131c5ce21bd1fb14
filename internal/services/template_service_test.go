// internal/services/template_service_test.go
package services

import (
	"testing"
	"time"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
)

func newTestTemplates(t *testing.T) *TemplateService {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	return NewTemplateService(store)
}

func TestTemplateCreateAndList(t *testing.T) {
	templates := newTestTemplates(t)

	created, err := templates.Create("  Opener  ", "Hey {owner}, quick one about {business}.")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	if created.Name != "Opener" {
		t.Errorf("名称应修剪: %q", created.Name)
	}
	if created.ID == "" {
		t.Error("应生成时间戳ID")
	}

	list, err := templates.List()
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("列表不匹配: %+v", list)
	}
}

func TestTemplateCreateValidation(t *testing.T) {
	templates := newTestTemplates(t)

	tests := []struct {
		name          string
		templateName  string
		body          string
		expectedField string
	}{
		{"空名称", "  ", "body text", "name"},
		{"空内容", "Opener", "   ", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := templates.Create(tt.templateName, tt.body)
			if err == nil {
				t.Fatal("应返回验证错误")
			}
			if !apperrors.IsValidationError(err) {
				t.Fatalf("期望验证错误，实际 %v", err)
			}
			if field := apperrors.ValidationField(err); field != tt.expectedField {
				t.Errorf("错误字段不匹配: 期望 %q，实际 %q", tt.expectedField, field)
			}
		})
	}
}

func TestTemplateUpdate(t *testing.T) {
	templates := newTestTemplates(t)

	created, err := templates.Create("Opener", "original body")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	updated, err := templates.Update(created.ID, "Renamed", "")
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("名称未更新: %q", updated.Name)
	}
	if updated.Body != "original body" {
		t.Errorf("空内容不应覆盖已有内容: %q", updated.Body)
	}

	if _, err := templates.Update("missing", "x", "y"); !apperrors.IsNotFoundError(err) {
		t.Errorf("更新不存在的模板应返回 NotFound，实际 %v", err)
	}
}

func TestTemplateDelete(t *testing.T) {
	templates := newTestTemplates(t)

	first, err := templates.Create("A", "body a")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := templates.Create("B", "body b")
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}

	if err := templates.Delete(first.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	list, err := templates.List()
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("删除后列表不匹配: %+v", list)
	}

	if err := templates.Delete(first.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("重复删除应返回 NotFound，实际 %v", err)
	}
}
