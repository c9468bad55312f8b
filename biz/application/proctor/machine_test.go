package proctor

import (
	"context"
	"errors"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	teacherId    = "teacher-1"
	assignmentId = "a1b2c3d4e5"
	studentId    = "s001"
	sessionId    = assignmentId + "_" + studentId
)

// ---- 内存文档后端，语义对齐mongo映射层 ----

type memBackend struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string]map[string]any)}
}

func cloneMap(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (b *memBackend) FindOneDoc(_ context.Context, id string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[id]
	if !ok {
		return nil, consts.ErrNotFound
	}
	return cloneMap(doc), nil
}

func (b *memBackend) InsertDoc(_ context.Context, doc map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := cast.ToString(doc[consts.ID])
	if _, ok := b.docs[id]; ok {
		return consts.ErrAlreadyExists
	}
	b.docs[id] = cloneMap(doc)
	return nil
}

func (b *memBackend) ApplyDoc(_ context.Context, id string, set map[string]any, guard map[string]any) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[id]
	if !ok {
		return false, nil
	}
	for k, v := range guard {
		if cond, isM := v.(bson.M); isM {
			if lte, hasLte := cond["$lte"]; !hasLte || cast.ToInt64(doc[k]) > cast.ToInt64(lte) {
				return false, nil
			}
			continue
		}
		if cast.ToString(doc[k]) != cast.ToString(v) {
			return false, nil
		}
	}
	for k, v := range set {
		doc[k] = v
	}
	return true, nil
}

func (b *memBackend) DeleteDoc(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[id]; !ok {
		return false, nil
	}
	delete(b.docs, id)
	return true, nil
}

func (b *memBackend) FindDocs(_ context.Context, filter map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, doc := range b.docs {
		match := true
		for k, v := range filter {
			if cast.ToString(doc[k]) != cast.ToString(v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneMap(doc))
		}
	}
	return out, nil
}

// ---- 假环境监视器 ----

type fakeEnv struct {
	mu        sync.Mutex
	signals   chan Signal
	sandboxed bool
	guard     bool
	denyEnter bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{signals: make(chan Signal, 16)}
}

func (e *fakeEnv) Signals() <-chan Signal { return e.signals }

func (e *fakeEnv) RequestSandbox(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.denyEnter {
		return errors.New("fullscreen rejected")
	}
	e.sandboxed = true
	return nil
}

func (e *fakeEnv) ExitSandbox() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sandboxed = false
}

func (e *fakeEnv) Sandboxed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sandboxed
}

func (e *fakeEnv) SetInputGuard(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guard = enabled
}

func (e *fakeEnv) guardEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.guard
}

// 模拟一次退出全屏：先失焦与不可见，再丢沙箱信号，和浏览器一致
func (e *fakeEnv) leaveFullscreen() {
	e.signals <- SignalVisibilityLost
	e.signals <- SignalFocusLost
	e.signals <- SignalSandboxLost
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---- 测试脚手架 ----

type fixture struct {
	store    *docstore.Store
	sessions *memBackend
	env      *fakeEnv
	clock    *fakeClock
	machine  *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	assignments := newMemBackend()
	sessions := newMemBackend()
	store := docstore.NewStoreWithBackends(map[string]docstore.Backend{
		consts.AssignmentCollection: assignments,
		consts.SessionCollection:    sessions,
	})
	if err := store.Create(context.Background(), docstore.User(teacherId), consts.AssignmentCollection, assignmentId, docstore.Doc{
		consts.FieldTeacherId:    teacherId,
		consts.FieldName:         "随堂写作",
		consts.FieldPromptText:   "describe your summer",
		consts.FieldStrikeLimit:  int64(3),
		consts.FieldActiveStatus: consts.StatusActive,
	}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	env := newFakeEnv()
	clock := newFakeClock()
	m := NewMachine(store, env, Config{
		StrikeDebounce:       800 * time.Millisecond,
		AutosaveInterval:     10 * time.Millisecond,
		SandboxReturnSeconds: 2,
		CountdownTick:        50 * time.Millisecond,
		Clock:                clock.Now,
	})
	t.Cleanup(m.Close)
	return &fixture{store: store, sessions: sessions, env: env, clock: clock, machine: m}
}

func (f *fixture) sessionDoc(t *testing.T) docstore.Doc {
	t.Helper()
	doc, err := f.store.Get(context.Background(), docstore.System, consts.SessionCollection, sessionId)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	return doc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// ---- 用例 ----

func TestStartFreshSession(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := f.machine.Observe()
	if snap.Phase != PhaseWriting || snap.StrikeCount != 0 || snap.Status != consts.StatusActive {
		t.Fatalf("snapshot after start: %+v", snap)
	}
	if snap.PromptText != "describe your summer" || snap.StrikeLimit != 3 {
		t.Fatalf("assignment not loaded: %+v", snap)
	}
	if !f.env.Sandboxed() || !f.env.guardEnabled() {
		t.Fatal("sandbox or input guard not engaged")
	}
	doc := f.sessionDoc(t)
	if cast.ToString(doc[consts.FieldStatus]) != consts.StatusActive || cast.ToInt64(doc[consts.FieldStrikeCount]) != 0 {
		t.Fatalf("session doc after start: %v", doc)
	}
}

func TestLoadUnknownAssignment(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Load(context.Background(), "nosuchassn"); !errors.Is(err, consts.ErrGetAssignment) {
		t.Fatalf("load unknown: err = %v", err)
	}
	if p := f.machine.Phase(); p != PhaseLoading {
		t.Fatalf("phase = %v, want loading", p)
	}
}

func TestStudentIdNormalized(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, "  s0 01\t", "李四"); err != nil {
		t.Fatalf("start: %v", err)
	}
	doc := f.sessionDoc(t)
	if cast.ToString(doc[consts.FieldStudentId]) != studentId {
		t.Fatalf("student_id = %q, want %q", doc[consts.FieldStudentId], studentId)
	}
}

func TestResumeRestoresProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// 既有会话：三个词的草稿，一次违规
	if err := f.store.Create(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldAssignmentId: assignmentId,
		consts.FieldStudentId:    studentId,
		consts.FieldTeacherId:    teacherId,
		consts.FieldContent:      "",
		consts.FieldStrikeCount:  int64(0),
		consts.FieldStatus:       consts.StatusActive,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := f.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldContent:     "draft from earlier",
		consts.FieldWordCount:   int64(3),
		consts.FieldStrikeCount: int64(1),
	}); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	if err := f.machine.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := f.machine.Observe()
	if snap.Phase != PhaseWriting {
		t.Fatalf("phase = %v", snap.Phase)
	}
	if snap.Content != "draft from earlier" || snap.StrikeCount != 1 {
		t.Fatalf("resume lost progress: %+v", snap)
	}
}

func TestLockedSessionBarsReentry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldAssignmentId: assignmentId,
		consts.FieldStudentId:    studentId,
		consts.FieldTeacherId:    teacherId,
		consts.FieldContent:      "",
		consts.FieldStrikeCount:  int64(0),
		consts.FieldStatus:       consts.StatusActive,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, err := f.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldStatus: consts.StatusLocked,
	}); err != nil {
		t.Fatalf("lock session: %v", err)
	}

	if err := f.machine.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if p := f.machine.Phase(); p != PhaseSubmitted {
		t.Fatalf("phase = %v, want submitted", p)
	}
	if f.env.Sandboxed() {
		t.Fatal("sandbox still engaged on locked session")
	}
}

func TestSandboxDeniedBlocksEntry(t *testing.T) {
	f := newFixture(t)
	f.env.denyEnter = true
	err := f.machine.Start(context.Background(), assignmentId, studentId, "张三")
	if !errors.Is(err, consts.ErrSandboxUnavailable) {
		t.Fatalf("start: err = %v, want sandbox unavailable", err)
	}
	// 不建档也不计违规，修好环境后可以重来
	if _, err := f.store.Get(context.Background(), docstore.System, consts.SessionCollection, sessionId); !errors.Is(err, consts.ErrNotFound) {
		t.Fatalf("session created despite blocked entry: %v", err)
	}
	f.env.denyEnter = false
	if err := f.machine.Enter(context.Background(), studentId, "张三"); err != nil {
		t.Fatalf("retry enter: %v", err)
	}
	if p := f.machine.Phase(); p != PhaseWriting {
		t.Fatalf("phase = %v, want writing", p)
	}
}

func TestStrikeDebounceSharedAcrossSignals(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 一次切页同时触发可见性与焦点两路信号，只算一次违规
	f.env.signals <- SignalVisibilityLost
	f.env.signals <- SignalFocusLost
	waitFor(t, "first strike", func() bool { return f.machine.Observe().StrikeCount == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := f.machine.Observe().StrikeCount; got != 1 {
		t.Fatalf("strike count = %d, want 1 within debounce window", got)
	}

	// 去抖窗口过后的新动作才算第二次
	f.env.signals <- SignalSandboxRestored
	f.clock.Advance(time.Second)
	f.env.signals <- SignalFocusLost
	waitFor(t, "second strike", func() bool { return f.machine.Observe().StrikeCount == 2 })
}

func TestStrikePersistedImmediately(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.env.signals <- SignalVisibilityLost
	waitFor(t, "strike persisted", func() bool {
		return cast.ToInt64(f.sessionDoc(t)[consts.FieldStrikeCount]) == 1
	})
}

func TestStrikeOpensCountdownAndReturnCancels(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.env.leaveFullscreen()
	waitFor(t, "countdown open", func() bool { return f.machine.Observe().CountdownRemaining > 0 })

	// 期限内回到全屏，警告撤销，不再强制交卷
	f.env.signals <- SignalSandboxRestored
	waitFor(t, "countdown cleared", func() bool { return f.machine.Observe().CountdownRemaining == 0 })
	time.Sleep(50 * time.Millisecond)
	snap := f.machine.Observe()
	if snap.Phase != PhaseWriting || snap.StrikeCount != 1 {
		t.Fatalf("after return: %+v", snap)
	}
}

func TestSandboxLostNotRecountedWhileWarningOpen(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.env.signals <- SignalSandboxLost
	waitFor(t, "first strike", func() bool { return f.machine.Observe().StrikeCount == 1 })

	// 去抖窗口已过，但警告未关，重复的丢沙箱信号不另计
	f.clock.Advance(time.Second)
	f.env.signals <- SignalSandboxLost
	time.Sleep(30 * time.Millisecond)
	if got := f.machine.Observe().StrikeCount; got != 1 {
		t.Fatalf("strike count = %d, want 1 while warning open", got)
	}
}

func TestStrikeLimitForcesSubmit(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.machine.SetContent("my essay text")

	for i := 1; i <= 3; i++ {
		f.env.signals <- SignalFocusLost
		want := int64(i)
		waitFor(t, "strike", func() bool { return f.machine.Observe().StrikeCount >= want })
		f.clock.Advance(time.Second)
	}

	waitFor(t, "forced submit", func() bool { return f.machine.Phase() == PhaseSubmitted })
	doc := f.sessionDoc(t)
	if cast.ToString(doc[consts.FieldStatus]) != consts.StatusLocked {
		t.Fatalf("status = %v, want locked", doc[consts.FieldStatus])
	}
	if cast.ToInt64(doc[consts.FieldStrikeCount]) != 3 {
		t.Fatalf("strike_count = %v, want 3", doc[consts.FieldStrikeCount])
	}
	if cast.ToString(doc[consts.FieldContent]) != "my essay text" {
		t.Fatalf("content lost on forced submit: %v", doc[consts.FieldContent])
	}
	if _, ok := doc[consts.FieldSubmittedAt].(time.Time); !ok {
		t.Fatalf("submitted_at missing: %v", doc)
	}
	if f.env.Sandboxed() || f.env.guardEnabled() {
		t.Fatal("sandbox or input guard still engaged after forced submit")
	}
}

func TestCountdownExpiryForcesSubmit(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.env.leaveFullscreen()
	waitFor(t, "countdown open", func() bool { return f.machine.Observe().CountdownRemaining > 0 })

	// 不回到全屏，倒计时归零即按上限违规强制交卷
	waitFor(t, "expiry submit", func() bool { return f.machine.Phase() == PhaseSubmitted })
	doc := f.sessionDoc(t)
	if cast.ToString(doc[consts.FieldStatus]) != consts.StatusLocked {
		t.Fatalf("status = %v, want locked", doc[consts.FieldStatus])
	}
	if cast.ToInt64(doc[consts.FieldStrikeCount]) != 3 {
		t.Fatalf("strike_count = %v, want raised to limit", doc[consts.FieldStrikeCount])
	}
}

func TestSubmitIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.machine.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.machine.SetContent("one two")
	if err := f.machine.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	first, _ := f.sessionDoc(t)[consts.FieldSubmittedAt].(time.Time)

	if err := f.machine.Submit(ctx); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	second, _ := f.sessionDoc(t)[consts.FieldSubmittedAt].(time.Time)
	if !first.Equal(second) {
		t.Fatalf("submitted_at moved on repeat submit: %v → %v", first, second)
	}
	doc := f.sessionDoc(t)
	if cast.ToInt64(doc[consts.FieldWordCount]) != 2 {
		t.Fatalf("word_count = %v, want 2", doc[consts.FieldWordCount])
	}
}

func TestAutosavePersistsContent(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(context.Background(), assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.machine.SetContent("one two three")
	waitFor(t, "autosave", func() bool {
		doc := f.sessionDoc(t)
		return cast.ToString(doc[consts.FieldContent]) == "one two three" &&
			cast.ToInt64(doc[consts.FieldWordCount]) == 3
	})
}

func TestExternalLockHaltsMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.machine.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 库里被另一端锁定后，下一次自动保存必须让状态机就地冻结
	if _, err := f.store.Update(ctx, docstore.System, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldStatus: consts.StatusLocked,
	}); err != nil {
		t.Fatalf("external lock: %v", err)
	}
	waitFor(t, "machine adopts lock", func() bool { return f.machine.Phase() == PhaseSubmitted })
	if f.env.guardEnabled() {
		t.Fatal("input guard still on after external lock")
	}
	if cast.ToString(f.sessionDoc(t)[consts.FieldStatus]) != consts.StatusLocked {
		t.Fatal("lock lost")
	}
}

// flakyStore 让锁定写失败给定次数，其余操作透传
type flakyStore struct {
	*docstore.Store
	mu        sync.Mutex
	failLocks int
}

func (s *flakyStore) Update(ctx context.Context, caller docstore.Identity, collection, id string, fields docstore.Doc) (docstore.Doc, error) {
	if cast.ToString(fields[consts.FieldStatus]) == consts.StatusLocked {
		s.mu.Lock()
		if s.failLocks > 0 {
			s.failLocks--
			s.mu.Unlock()
			return nil, consts.ErrTransient
		}
		s.mu.Unlock()
	}
	return s.Store.Update(ctx, caller, collection, id, fields)
}

func TestSubmitTransientFailureKeepsWriting(t *testing.T) {
	assignments := newMemBackend()
	sessions := newMemBackend()
	store := docstore.NewStoreWithBackends(map[string]docstore.Backend{
		consts.AssignmentCollection: assignments,
		consts.SessionCollection:    sessions,
	})
	ctx := context.Background()
	if err := store.Create(ctx, docstore.User(teacherId), consts.AssignmentCollection, assignmentId, docstore.Doc{
		consts.FieldTeacherId:   teacherId,
		consts.FieldPromptText:  "prompt",
		consts.FieldStrikeLimit: int64(3),
	}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	flaky := &flakyStore{Store: store, failLocks: 1}
	env := newFakeEnv()
	m := NewMachine(flaky, env, Config{
		StrikeDebounce:   800 * time.Millisecond,
		AutosaveInterval: 10 * time.Millisecond,
	})
	t.Cleanup(m.Close)

	if err := m.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.SetContent("one two")

	// 第一次交卷撞上瞬时故障：错误上抛，状态机留在写作阶段不半途而废
	if err := m.Submit(ctx); !errors.Is(err, consts.ErrSubmitSession) {
		t.Fatalf("submit: err = %v, want submit error", err)
	}
	snap := m.Observe()
	if snap.Phase != PhaseWriting || snap.Status != consts.StatusActive {
		t.Fatalf("after failed submit: %+v", snap)
	}
	doc, err := store.Get(ctx, docstore.System, consts.SessionCollection, sessionId)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if cast.ToString(doc[consts.FieldStatus]) != consts.StatusActive {
		t.Fatalf("status = %v, want still active", doc[consts.FieldStatus])
	}

	// 重试成功并锁定
	if err := m.Submit(ctx); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	doc, _ = store.Get(ctx, docstore.System, consts.SessionCollection, sessionId)
	if cast.ToString(doc[consts.FieldStatus]) != consts.StatusLocked {
		t.Fatalf("status = %v, want locked", doc[consts.FieldStatus])
	}
	if cast.ToString(doc[consts.FieldContent]) != "one two" {
		t.Fatalf("content = %v", doc[consts.FieldContent])
	}
}

func TestSignalsIgnoredAfterSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.machine.Start(ctx, assignmentId, studentId, "张三"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.machine.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.clock.Advance(time.Second)
	f.env.signals <- SignalVisibilityLost
	time.Sleep(30 * time.Millisecond)
	if got := f.machine.Observe().StrikeCount; got != 0 {
		t.Fatalf("strike after submit: %d", got)
	}
}

func TestEmptyStudentIdRejected(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Load(context.Background(), assignmentId); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.machine.Enter(context.Background(), "   ", "张三"); !errors.Is(err, consts.ErrEmptyStudentId) {
		t.Fatalf("enter with blank id: err = %v", err)
	}
}
