// internal/services/session_service.go
package services

import (
	"errors"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
)

// SessionService 持久化会话状态（活动标签页、风格引用），
// 使重新加载后恢复上次视图。
type SessionService struct {
	store *storage.Store
}

// NewSessionService 创建会话服务
func NewSessionService(store *storage.Store) *SessionService {
	return &SessionService{store: store}
}

// GetState 读取当前会话状态
func (s *SessionService) GetState() (*models.SessionState, error) {
	state := &models.SessionState{ActiveTab: models.TabGenerator}

	var tab string
	if err := s.store.Get(KeyActiveTab, &tab); err == nil && tab != "" {
		state.ActiveTab = tab
	}

	var ref models.StyleReference
	err := s.store.Get(KeyStyleReference, &ref)
	if err == nil {
		state.StyleReference = &ref
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, apperrors.NewProcessingError("读取会话状态失败", err)
	}

	return state, nil
}

// SetActiveTab 持久化活动标签页
func (s *SessionService) SetActiveTab(tab string) error {
	if tab != models.TabGenerator && tab != models.TabLibrary {
		return apperrors.NewValidationError("未知的标签页: "+tab, nil)
	}
	if err := s.store.Put(KeyActiveTab, tab); err != nil {
		return apperrors.NewProcessingError("保存活动标签页失败", err)
	}
	return nil
}

// SetStyleReference 将一条已保存脚本指定为下次生成的风格范例
func (s *SessionService) SetStyleReference(ref *models.StyleReference) error {
	if ref == nil || ref.ScriptID == "" {
		return apperrors.NewValidationError("风格引用为空", nil)
	}
	if err := s.store.Put(KeyStyleReference, ref); err != nil {
		return apperrors.NewProcessingError("保存风格引用失败", err)
	}
	return nil
}

// GetStyleReference 读取当前风格引用，未设置时返回 nil
func (s *SessionService) GetStyleReference() (*models.StyleReference, error) {
	var ref models.StyleReference
	err := s.store.Get(KeyStyleReference, &ref)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewProcessingError("读取风格引用失败", err)
	}
	return &ref, nil
}

// ClearStyleReference 清除风格引用（整键删除，而非写入 null）
func (s *SessionService) ClearStyleReference() error {
	err := s.store.Delete(KeyStyleReference)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return apperrors.NewProcessingError("清除风格引用失败", err)
	}
	return nil
}
