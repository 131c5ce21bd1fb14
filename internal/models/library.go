// internal/models/library.go
package models

import "time"

// CustomTemplate 用户自定义的生成模板
type CustomTemplate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// SavedScript 用户显式保存的脚本；创建后除删除外不再修改
type SavedScript struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	OwnerName    string    `json:"owner_name"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// StyleReference 被指定为风格范例的已保存脚本
type StyleReference struct {
	ScriptID string `json:"script_id"`
	Content  string `json:"content"`
}

// SessionState 会话状态，持久化以便重新加载后恢复视图
type SessionState struct {
	ActiveTab      string          `json:"active_tab"`
	StyleReference *StyleReference `json:"style_reference,omitempty"`
}

// 标签页标识
const (
	TabGenerator = "generator"
	TabLibrary   = "library"
)
