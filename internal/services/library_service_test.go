// internal/services/library_service_test.go
package services

import (
	"testing"
	"time"

	apperrors "github.com/Corphon/PitchPilotMCP/internal/errors"
	"github.com/Corphon/PitchPilotMCP/internal/models"
	"github.com/Corphon/PitchPilotMCP/internal/storage"
)

func newTestLibrary(t *testing.T) (*LibraryService, *storage.Store) {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	return NewLibraryService(store, NewScriptService()), store
}

func TestLibraryListEmpty(t *testing.T) {
	library, _ := newTestLibrary(t)

	saved, err := library.List()
	if err != nil {
		t.Fatalf("读取空列表失败: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("空库应返回空列表，实际 %d 条", len(saved))
	}
}

func TestLibrarySavePrepends(t *testing.T) {
	library, _ := newTestLibrary(t)

	first, err := library.Save("", "first script content", "Mike", "Miller Plumbing")
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if first.Title != "Mike - Miller Plumbing" {
		t.Errorf("默认标题不匹配: %q", first.Title)
	}

	time.Sleep(2 * time.Millisecond) // 保证时间戳ID不同
	second, err := library.Save("Custom title", "second script content", "Sara", "Bloom Cafe")
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if second.Title != "Custom title" {
		t.Errorf("显式标题被覆盖: %q", second.Title)
	}

	saved, err := library.List()
	if err != nil {
		t.Fatalf("读取列表失败: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("期望2条，实际 %d", len(saved))
	}
	// 最新在前
	if saved[0].ID != second.ID || saved[1].ID != first.ID {
		t.Errorf("列表顺序不是最新在前: %s, %s", saved[0].ID, saved[1].ID)
	}
}

func TestLibrarySaveEmptyContent(t *testing.T) {
	library, _ := newTestLibrary(t)

	if _, err := library.Save("t", "   ", "Mike", "Miller Plumbing"); err == nil {
		t.Error("空内容应拒绝保存")
	}
}

func TestLibraryFilter(t *testing.T) {
	library, _ := newTestLibrary(t)

	if _, err := library.Save("", "script about booking pages", "Mike", "Miller Plumbing"); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := library.Save("", "script about menus", "Sara", "Bloom Cafe"); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	tests := []struct {
		query    string
		expected int
	}{
		{"plumbing", 1},  // 商户名，大小写不敏感
		{"MIKE", 1},      // 联系人姓名
		{"script", 2},    // 内容
		{"", 2},          // 空查询返回全部
		{"  sara  ", 1},  // 查询先修剪
		{"nonexistent", 0},
	}

	for _, tt := range tests {
		matches, err := library.Filter(tt.query)
		if err != nil {
			t.Fatalf("过滤 %q 失败: %v", tt.query, err)
		}
		if len(matches) != tt.expected {
			t.Errorf("过滤 %q: 期望 %d 条，实际 %d", tt.query, tt.expected, len(matches))
		}
	}
}

func TestLibraryDeleteExactlyOne(t *testing.T) {
	library, store := newTestLibrary(t)

	// 构造含重复ID的列表，验证只删除一条且顺序保留
	entries := []models.SavedScript{
		{ID: "100", Title: "a", Content: "a"},
		{ID: "200", Title: "b", Content: "b"},
		{ID: "200", Title: "c", Content: "c"},
		{ID: "300", Title: "d", Content: "d"},
	}
	if err := store.Put(KeySavedScripts, entries); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := library.Delete("200"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	saved, err := library.List()
	if err != nil {
		t.Fatalf("读取列表失败: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("重复ID应只删除一条: 期望3条，实际 %d", len(saved))
	}
	expectedTitles := []string{"a", "c", "d"}
	for i, title := range expectedTitles {
		if saved[i].Title != title {
			t.Errorf("条目 %d: 期望 %q，实际 %q", i, title, saved[i].Title)
		}
	}
}

func TestLibraryDeleteMissing(t *testing.T) {
	library, _ := newTestLibrary(t)

	err := library.Delete("does_not_exist")
	if err == nil {
		t.Fatal("删除不存在的脚本应报错")
	}

	if !apperrors.IsNotFoundError(err) {
		t.Errorf("期望 NotFound 错误，实际 %v", err)
	}
}

func TestLibraryGet(t *testing.T) {
	library, _ := newTestLibrary(t)

	saved, err := library.Save("", "some content", "Mike", "Miller Plumbing")
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	got, err := library.Get(saved.ID)
	if err != nil {
		t.Fatalf("获取失败: %v", err)
	}
	if got.Content != "some content" {
		t.Errorf("内容不匹配: %q", got.Content)
	}

	if _, err := library.Get("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("期望 NotFound 错误，实际 %v", err)
	}
}
