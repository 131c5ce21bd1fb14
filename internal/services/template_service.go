// internal/services/template_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
)

// TemplateService 管理用户自定义模板，持久化为整读整写的列表
type TemplateService struct {
	store *storage.Store
}

// NewTemplateService 创建模板服务
func NewTemplateService(store *storage.Store) *TemplateService {
	return &TemplateService{store: store}
}

// List 加载完整模板列表
func (s *TemplateService) List() ([]models.CustomTemplate, error) {
	var templates []models.CustomTemplate
	err := s.store.Get(KeyCustomTemplates, &templates)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return []models.CustomTemplate{}, nil
		}
		return nil, apperrors.NewProcessingError("读取模板列表失败", err)
	}
	return templates, nil
}

// Get 按ID获取模板。
// 生成输入中悬空的模板引用不是错误，由调用方决定回退到内置示例。
func (s *TemplateService) Get(id string) (*models.CustomTemplate, error) {
	templates, err := s.List()
	if err != nil {
		return nil, err
	}

	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("模板不存在: %s", id), nil)
}

// Create 创建一个新模板并追加到列表
func (s *TemplateService) Create(name, body string) (*models.CustomTemplate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewFieldValidationError("name", "模板名称不能为空")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewFieldValidationError("body", "模板内容不能为空")
	}

	templates, err := s.List()
	if err != nil {
		return nil, err
	}

	template := models.CustomTemplate{
		ID:   fmt.Sprintf("%d", time.Now().UnixMilli()),
		Name: strings.TrimSpace(name),
		Body: body,
	}

	templates = append(templates, template)

	if err := s.store.Put(KeyCustomTemplates, templates); err != nil {
		return nil, apperrors.NewProcessingError("保存模板失败", err)
	}

	return &template, nil
}

// Update 更新已有模板
func (s *TemplateService) Update(id, name, body string) (*models.CustomTemplate, error) {
	templates, err := s.List()
	if err != nil {
		return nil, err
	}

	for i := range templates {
		if templates[i].ID != id {
			continue
		}

		if strings.TrimSpace(name) != "" {
			templates[i].Name = strings.TrimSpace(name)
		}
		if strings.TrimSpace(body) != "" {
			templates[i].Body = body
		}

		if err := s.store.Put(KeyCustomTemplates, templates); err != nil {
			return nil, apperrors.NewProcessingError("更新模板失败", err)
		}
		return &templates[i], nil
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("模板不存在: %s", id), nil)
}

// Delete 删除指定ID的模板。
// 已保存脚本对被删模板的历史引用被容忍，不做关联清理。
func (s *TemplateService) Delete(id string) error {
	templates, err := s.List()
	if err != nil {
		return err
	}

	remaining := make([]models.CustomTemplate, 0, len(templates))
	found := false
	for _, template := range templates {
		if !found && template.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, template)
	}

	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("模板不存在: %s", id), nil)
	}

	if err := s.store.Put(KeyCustomTemplates, remaining); err != nil {
		return apperrors.NewProcessingError("删除模板失败", err)
	}

	return nil
}
