package service

import (
	"context"
	"errors"
	"fmt"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"testing"
	"time"
)

// memExportCache 内存版导出缓存
type memExportCache struct {
	entries map[string]*write.ExportSessionResp
}

func newMemExportCache() *memExportCache {
	return &memExportCache{entries: make(map[string]*write.ExportSessionResp)}
}

func (c *memExportCache) Get(_ context.Context, id string) (*write.ExportSessionResp, error) {
	if resp, ok := c.entries[id]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("cache miss")
}

func (c *memExportCache) Set(_ context.Context, id string, data *write.ExportSessionResp) error {
	c.entries[id] = data
	return nil
}

func (c *memExportCache) Delete(_ context.Context, id string) error {
	delete(c.entries, id)
	return nil
}

func newSessionFixture(t *testing.T) (*SessionService, *memExportCache) {
	t.Helper()
	store := docstore.NewStoreWithBackends(map[string]docstore.Backend{
		consts.AssignmentCollection: newStubBackend(),
		consts.SessionCollection:    newStubBackend(),
	})
	ctx := context.Background()
	if err := store.Create(ctx, docstore.User("teacher-1"), consts.AssignmentCollection, "abc123", docstore.Doc{
		consts.FieldTeacherId:  "teacher-1",
		consts.FieldPromptText: "prompt",
	}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	if err := store.Create(ctx, docstore.Anonymous, consts.SessionCollection, "abc123_s001", docstore.Doc{
		consts.FieldAssignmentId: "abc123",
		consts.FieldStudentId:    "s001",
		consts.FieldStudentName:  "张三",
		consts.FieldTeacherId:    "teacher-1",
		consts.FieldContent:      "",
		consts.FieldStrikeCount:  int64(0),
		consts.FieldStatus:       consts.StatusActive,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := store.Update(ctx, docstore.Anonymous, consts.SessionCollection, "abc123_s001", docstore.Doc{
		consts.FieldContent: "final essay",
		consts.FieldStatus:  consts.StatusLocked,
	}); err != nil {
		t.Fatalf("lock session: %v", err)
	}
	exportCache := newMemExportCache()
	return &SessionService{Store: store, ExportCache: exportCache}, exportCache
}

func TestExportLockedOwnerOnly(t *testing.T) {
	svc, exportCache := newSessionFixture(t)
	ctx := context.Background()

	resp, err := svc.exportLocked(ctx, "teacher-1", "abc123_s001")
	if err != nil {
		t.Fatalf("owner export: %v", err)
	}
	if resp.Content != "final essay" || resp.FileName != "s001_张三_submission.txt" {
		t.Fatalf("export resp: %+v", resp)
	}

	// 归属教师导出过后缓存已暖，外人导出仍要过读规则
	if _, err := svc.exportLocked(ctx, "teacher-2", "abc123_s001"); !errors.Is(err, consts.ErrGetSession) {
		t.Fatalf("foreign export: err = %v, want get session error", err)
	}
	if _, ok := exportCache.entries["teacher-2:abc123_s001"]; ok {
		t.Fatal("denied export left a cache entry")
	}
}

func TestExportLockedCacheScopedByCaller(t *testing.T) {
	svc, exportCache := newSessionFixture(t)
	ctx := context.Background()
	if _, err := svc.exportLocked(ctx, "teacher-1", "abc123_s001"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, ok := exportCache.entries["teacher-1:abc123_s001"]; !ok {
		t.Fatalf("cache keys: %v", exportCache.entries)
	}
	if _, ok := exportCache.entries["abc123_s001"]; ok {
		t.Fatal("cache keyed by bare session id")
	}
}

func TestExportActiveSessionRejected(t *testing.T) {
	svc, _ := newSessionFixture(t)
	ctx := context.Background()
	if err := svc.Store.Create(ctx, docstore.Anonymous, consts.SessionCollection, "abc123_s002", docstore.Doc{
		consts.FieldAssignmentId: "abc123",
		consts.FieldStudentId:    "s002",
		consts.FieldTeacherId:    "teacher-1",
		consts.FieldStrikeCount:  int64(0),
		consts.FieldStatus:       consts.StatusActive,
	}); err != nil {
		t.Fatalf("seed active session: %v", err)
	}
	if _, err := svc.exportLocked(ctx, "teacher-1", "abc123_s002"); !errors.Is(err, consts.ErrSessionNotLocked) {
		t.Fatalf("export active: err = %v, want not locked", err)
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		studentId   string
		studentName string
		want        string
	}{
		{"s001", "", "s001_submission.txt"},
		{"s001", "张三", "s001_张三_submission.txt"},
		{"s001", "Li Lei", "s001_Li_Lei_submission.txt"},
		{"s0 01", " San  Zhang ", "s0_01_San_Zhang_submission.txt"},
	}
	for _, tt := range tests {
		if got := ExportFileName(tt.studentId, tt.studentName); got != tt.want {
			t.Fatalf("ExportFileName(%q, %q) = %q, want %q", tt.studentId, tt.studentName, got, tt.want)
		}
	}
}

func TestSessionInfoFromDoc(t *testing.T) {
	created := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	submitted := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	info := SessionInfoFromDoc(docstore.Doc{
		consts.ID:                "abc123_s001",
		consts.FieldAssignmentId: "abc123",
		consts.FieldStudentId:    "s001",
		consts.FieldStudentName:  "张三",
		consts.FieldTeacherId:    "teacher-1",
		consts.FieldContent:      "one two",
		consts.FieldWordCount:    int64(2),
		consts.FieldStrikeCount:  int64(1),
		consts.FieldStatus:       consts.StatusLocked,
		consts.FieldCreatedAt:    created,
		consts.FieldUpdatedAt:    submitted,
		consts.FieldSubmittedAt:  submitted,
	})
	if info.Id != "abc123_s001" || info.AssignmentId != "abc123" || info.StudentId != "s001" {
		t.Fatalf("identity fields: %+v", info)
	}
	if info.Content != "one two" || info.WordCount != 2 || info.StrikeCount != 1 {
		t.Fatalf("progress fields: %+v", info)
	}
	if info.Status != consts.StatusLocked {
		t.Fatalf("status = %q", info.Status)
	}
	if info.CreatedAt != created.Unix() {
		t.Fatalf("createdAt = %d, want %d", info.CreatedAt, created.Unix())
	}
	if info.SubmittedAt == nil || *info.SubmittedAt != submitted.Unix() {
		t.Fatalf("submittedAt = %v", info.SubmittedAt)
	}
}

func TestSessionInfoFromDocActive(t *testing.T) {
	info := SessionInfoFromDoc(docstore.Doc{
		consts.ID:                "abc123_s001",
		consts.FieldAssignmentId: "abc123",
		consts.FieldStudentId:    "s001",
		consts.FieldStatus:       consts.StatusActive,
		consts.FieldCreatedAt:    time.Now(),
		consts.FieldUpdatedAt:    time.Now(),
	})
	if info.SubmittedAt != nil {
		t.Fatalf("active session has submittedAt: %v", *info.SubmittedAt)
	}
}
