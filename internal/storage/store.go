// internal/storage/store.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ChangeAction 存储变更的动作类型
type ChangeAction string

const (
	ActionPut    ChangeAction = "put"
	ActionDelete ChangeAction = "delete"
)

// ChangeEvent 存储变更通知（对应浏览器的 storage 事件）
type ChangeEvent struct {
	Key       string       `json:"key"`
	Action    ChangeAction `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
}

// ChangeListener 变更监听回调
type ChangeListener func(ChangeEvent)

// Store 提供扁平命名空间的键值存储服务。
// 每个键对应 BaseDir 下的一个 JSON 文件，整值读取、整值重写，
// 最后写入者获胜，不提供事务保证。
type Store struct {
	BaseDir string

	// 并发控制
	keyLocks sync.Map // 键级别锁 key -> *sync.RWMutex

	// 简单读缓存
	cache       map[string][]byte
	cacheTimes  map[string]time.Time
	cacheMutex  sync.RWMutex
	cacheExpiry time.Duration

	// 变更订阅
	listeners     []ChangeListener
	listenerMutex sync.RWMutex
}

// NewStore 创建键值存储服务
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &Store{
		BaseDir:     baseDir,
		cache:       make(map[string][]byte),
		cacheTimes:  make(map[string]time.Time),
		cacheExpiry: 5 * time.Minute,
	}, nil
}

// 获取键锁
func (s *Store) getKeyLock(key string) *sync.RWMutex {
	value, _ := s.keyLocks.LoadOrStore(key, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// keyPath 键到文件路径的映射
func (s *Store) keyPath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}

// validKey 键名只允许小写字母、数字和下划线
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			return false
		}
	}
	return true
}

// Put 序列化并整值写入一个键
func (s *Store) Put(key string, value interface{}) error {
	if !validKey(key) {
		return fmt.Errorf("非法的存储键: %q", key)
	}

	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	lock := s.getKeyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// 原子性文件写入
	fullPath := s.keyPath(key)
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fmt.Printf("警告: 重命名失败后清理临时文件 %s 失败: %v\n", tempPath, removeErr)
		}
		return fmt.Errorf("保存文件失败: %w", err)
	}

	s.invalidateCache(key)
	s.notify(ChangeEvent{Key: key, Action: ActionPut, Timestamp: time.Now()})

	return nil
}

// Get 整值读取一个键并解析到 v 中
func (s *Store) Get(key string, v interface{}) error {
	if !validKey(key) {
		return fmt.Errorf("非法的存储键: %q", key)
	}

	// 检查缓存
	s.cacheMutex.RLock()
	if data, exists := s.cache[key]; exists {
		if time.Since(s.cacheTimes[key]) < s.cacheExpiry {
			s.cacheMutex.RUnlock()
			return json.Unmarshal(data, v)
		}
	}
	s.cacheMutex.RUnlock()

	lock := s.getKeyLock(key)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("读取文件失败: %w", err)
	}

	s.updateCache(key, content)

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}

	return nil
}

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = fmt.Errorf("存储键不存在")

// Has 检查键是否存在
func (s *Store) Has(key string) bool {
	if !validKey(key) {
		return false
	}
	_, err := os.Stat(s.keyPath(key))
	return err == nil
}

// Delete 整条删除一个键。
// 风格引用被清除时整键删除，而不是写入 null。
func (s *Store) Delete(key string) error {
	if !validKey(key) {
		return fmt.Errorf("非法的存储键: %q", key)
	}

	lock := s.getKeyLock(key)
	lock.Lock()
	defer lock.Unlock()

	fullPath := s.keyPath(key)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return ErrKeyNotFound
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("删除文件失败: %w", err)
	}

	s.invalidateCache(key)
	s.notify(ChangeEvent{Key: key, Action: ActionDelete, Timestamp: time.Now()})

	return nil
}

// Keys 列出当前存在的所有键
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("读取存储目录失败: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}

	return keys, nil
}

// Subscribe 注册变更监听器，返回注销函数。
// 监听器在每次成功写入/删除后同步调用。
func (s *Store) Subscribe(fn ChangeListener) func() {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	s.listeners = append(s.listeners, fn)
	index := len(s.listeners) - 1

	return func() {
		s.listenerMutex.Lock()
		defer s.listenerMutex.Unlock()
		if index < len(s.listeners) {
			s.listeners[index] = nil
		}
	}
}

// notify 向所有监听器发送变更事件
func (s *Store) notify(event ChangeEvent) {
	s.listenerMutex.RLock()
	defer s.listenerMutex.RUnlock()

	for _, fn := range s.listeners {
		if fn != nil {
			fn(event)
		}
	}
}

// 缓存管理
func (s *Store) updateCache(key string, data []byte) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.cache[key] = data
	s.cacheTimes[key] = time.Now()
}

// invalidateCache 清除指定键的缓存
func (s *Store) invalidateCache(key string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	delete(s.cache, key)
	delete(s.cacheTimes, key)
}
