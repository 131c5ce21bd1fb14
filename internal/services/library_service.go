// internal/services/library_service.go
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

// 持久化存储键（扁平命名空间）
const (
	KeySavedScripts    = "saved_scripts"
	KeyCustomTemplates = "custom_templates"
	KeyActiveTab       = "active_tab"
	KeyStyleReference  = "style_reference"
)

// LibraryService 管理已保存脚本的列表：
// 列出、过滤、删除、重新选用。列表整读整写，最新在前。
type LibraryService struct {
	store   *storage.Store
	scripts *ScriptService
}

// NewLibraryService 创建脚本库服务
func NewLibraryService(store *storage.Store, scripts *ScriptService) *LibraryService {
	return &LibraryService{
		store:   store,
		scripts: scripts,
	}
}

// List 加载完整的已保存脚本列表（最新在前）
func (s *LibraryService) List() ([]models.SavedScript, error) {
	var saved []models.SavedScript
	err := s.store.Get(KeySavedScripts, &saved)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return []models.SavedScript{}, nil
		}
		return nil, apperrors.NewProcessingError("读取脚本列表失败", err)
	}
	return saved, nil
}

// Filter 大小写不敏感的子串匹配，范围覆盖联系人姓名、商户名和脚本内容
func (s *LibraryService) Filter(query string) ([]models.SavedScript, error) {
	saved, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return saved, nil
	}

	filtered := make([]models.SavedScript, 0, len(saved))
	for _, script := range saved {
		if strings.Contains(strings.ToLower(script.OwnerName), query) ||
			strings.Contains(strings.ToLower(script.BusinessName), query) ||
			strings.Contains(strings.ToLower(script.Content), query) {
			filtered = append(filtered, script)
		}
	}

	return filtered, nil
}

// Get 按ID获取单条已保存脚本
func (s *LibraryService) Get(id string) (*models.SavedScript, error) {
	saved, err := s.List()
	if err != nil {
		return nil, err
	}

	for i := range saved {
		if saved[i].ID == id {
			return &saved[i], nil
		}
	}

	return nil, apperrors.NewNotFoundError(fmt.Sprintf("脚本不存在: %s", id), nil)
}

// Save 保存一条生成结果。新条目前插（最新在前），已有条目不被修改。
// ID 是调用方生成的毫秒时间戳；重复风险被容忍而非防御。
func (s *LibraryService) Save(title, content, ownerName, businessName string) (*models.SavedScript, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("脚本内容为空，无法保存", nil)
	}

	saved, err := s.List()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = s.scripts.DeriveTitle(ownerName, businessName)
	}

	entry := models.SavedScript{
		ID:           fmt.Sprintf("%d", time.Now().UnixMilli()),
		Title:        title,
		Content:      content,
		OwnerName:    ownerName,
		BusinessName: businessName,
		CreatedAt:    time.Now(),
	}

	saved = append([]models.SavedScript{entry}, saved...)

	if err := s.store.Put(KeySavedScripts, saved); err != nil {
		return nil, apperrors.NewProcessingError("保存脚本失败", err)
	}

	return &entry, nil
}

// Delete 删除恰好一条指定ID的脚本，其余条目及顺序保持不变
func (s *LibraryService) Delete(id string) error {
	saved, err := s.List()
	if err != nil {
		return err
	}

	remaining := make([]models.SavedScript, 0, len(saved))
	found := false
	for _, script := range saved {
		if !found && script.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, script)
	}

	if !found {
		return apperrors.NewNotFoundError(fmt.Sprintf("脚本不存在: %s", id), nil)
	}

	if err := s.store.Put(KeySavedScripts, remaining); err != nil {
		return apperrors.NewProcessingError("删除脚本失败", err)
	}

	return nil
}
