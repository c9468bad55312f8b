package proctor

import (
	"context"
	"errors"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/util"
	"focus-write/biz/infrastructure/util/log"
	"time"

	"github.com/google/wire"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// 监考状态机。学生端唯一的写入者，拥有一份会话文档，
// 驱动 loading → entry → writing → submitted 四个阶段。
// 所有事件（环境信号、自动保存节拍、倒计时节拍、外部命令）都汇入
// 单个 run 协程串行处理，发起任何写入前对 status 的检查因此是原子的，
// 这关掉了自动保存与锁定之间的竞态。

type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseEntry     Phase = "entry"
	PhaseWriting   Phase = "writing"
	PhaseSubmitted Phase = "submitted"
)

// Store 状态机消费的文档库能力，学生侧只有未认证写路径
type Store interface {
	Create(ctx context.Context, caller docstore.Identity, collection, id string, fields docstore.Doc) error
	Update(ctx context.Context, caller docstore.Identity, collection, id string, fields docstore.Doc) (docstore.Doc, error)
	Get(ctx context.Context, caller docstore.Identity, collection, id string) (docstore.Doc, error)
}

type Config struct {
	StrikeDebounce       time.Duration
	AutosaveInterval     time.Duration
	SandboxReturnSeconds int64
	CountdownTick        time.Duration
	Clock                func() time.Time // 测试注入
}

func (c *Config) fill() {
	if c.StrikeDebounce <= 0 {
		c.StrikeDebounce = consts.DefaultStrikeDebounceMs * time.Millisecond
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = consts.DefaultAutosaveIntervalMs * time.Millisecond
	}
	if c.SandboxReturnSeconds <= 0 {
		c.SandboxReturnSeconds = consts.DefaultSandboxReturnSeconds
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Snapshot 呈现层可观察的瞬时状态
type Snapshot struct {
	Phase              Phase
	Status             string
	Content            string
	WordCount          int64
	StrikeCount        int64
	StrikeLimit        int64
	Sandboxed          bool
	CountdownRemaining int64
	AutosaveFailures   int64
	PromptText         string
}

type assignmentView struct {
	TeacherID   string `mapstructure:"teacher_id"`
	PromptText  string `mapstructure:"prompt_text"`
	StrikeLimit int64  `mapstructure:"strike_limit"`
}

type Machine struct {
	store Store
	env   EnvironmentMonitor
	cfg   Config

	cmds   chan func()
	closed chan struct{}

	// 以下字段仅在 run 协程内读写
	phase        Phase
	assignmentId string
	assignment   assignmentView
	strikeLimit  int64
	studentId    string
	studentName  string
	sessionId    string

	content     string
	strikeCount int64
	status      string

	sandboxed      bool
	sandboxEntered bool
	lastStrikeAt   time.Time
	warningOpen    bool
	countdownLeft  int64

	autosaveFailures int64

	autosaveTicker  *time.Ticker
	autosaveC       <-chan time.Time
	countdownTicker *time.Ticker
	countdownC      <-chan time.Time
}

// NewMachine 构造一台状态机并启动其事件循环
func NewMachine(store Store, env EnvironmentMonitor, cfg Config) *Machine {
	cfg.fill()
	m := &Machine{
		store:       store,
		env:         env,
		cfg:         cfg,
		cmds:        make(chan func(), 16),
		closed:      make(chan struct{}),
		phase:       PhaseLoading,
		status:      consts.StatusActive,
		strikeLimit: consts.DefaultStrikeLimit,
	}
	go m.run()
	return m
}

// run 单一串行事件循环，状态只在这里变更
func (m *Machine) run() {
	for {
		select {
		case <-m.closed:
			m.teardown()
			return
		case fn := <-m.cmds:
			fn()
		case sig, ok := <-m.env.Signals():
			if !ok {
				continue
			}
			m.handleSignal(sig)
		case <-m.autosaveC:
			m.autosaveTick()
		case <-m.countdownC:
			m.countdownTick()
		}
	}
}

// do 把闭包投递进事件循环并等待执行完毕
func (m *Machine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case <-m.closed:
		return consts.ErrMachineClosed
	case m.cmds <- func() {
		fn()
		close(done)
	}:
	}
	select {
	case <-done:
		return nil
	case <-m.closed:
		return consts.ErrMachineClosed
	}
}

// Close 终止状态机，拆除全部监听与定时器
func (m *Machine) Close() {
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
}

// Load 按id拉取作业，loading → entry；作业不存在则停留在终态错误
func (m *Machine) Load(ctx context.Context, assignmentId string) error {
	var err error
	derr := m.do(func() {
		if m.phase != PhaseLoading {
			return
		}
		doc, gerr := m.store.Get(ctx, docstore.Anonymous, consts.AssignmentCollection, assignmentId)
		if gerr != nil {
			err = consts.ErrGetAssignment
			return
		}
		var view assignmentView
		if derr := mapstructure.WeakDecode(doc, &view); derr != nil {
			log.CtxError(ctx, "decode assignment %s failed: %v", assignmentId, derr)
			err = consts.ErrGetAssignment
			return
		}
		m.assignmentId = assignmentId
		m.assignment = view
		m.strikeLimit = view.StrikeLimit
		if m.strikeLimit <= 0 {
			m.strikeLimit = consts.DefaultStrikeLimit
		}
		m.phase = PhaseEntry
	})
	if derr != nil {
		return derr
	}
	return err
}

// Enter 学生报到，entry → writing（或已锁定时直达 submitted）。
// 学生对会话没有读权限，这里用写探测分辨三种既有状态：
// 不存在则建档；active 则用写回显恢复既有正文与违规数；
// 更新被拒则说明已锁定，直接进入已提交阶段，挡住二次作答
func (m *Machine) Enter(ctx context.Context, studentId, studentName string) error {
	var err error
	derr := m.do(func() { err = m.enter(ctx, studentId, studentName) })
	if derr != nil {
		return derr
	}
	return err
}

func (m *Machine) enter(ctx context.Context, studentId, studentName string) error {
	if m.phase != PhaseEntry {
		if m.phase == PhaseSubmitted {
			return nil
		}
		return consts.ErrStartSession
	}
	normalized := util.NormalizeStudentId(studentId)
	if normalized == "" {
		return consts.ErrEmptyStudentId
	}
	m.studentId = normalized
	m.studentName = studentName
	m.sessionId = util.SessionId(m.assignmentId, normalized)

	// 全屏进不去就不放行写作，这里选择阻塞而不是记违规
	if serr := m.env.RequestSandbox(ctx); serr != nil {
		return consts.ErrSandboxUnavailable
	}
	m.sandboxed = true
	m.sandboxEntered = true

	const touchAttempts = 2
	for i := 0; i < touchAttempts; i++ {
		echo, uerr := m.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, m.sessionId, docstore.Doc{
			consts.FieldTeacherId: m.assignment.TeacherID,
		})
		switch {
		case uerr == nil:
			// 写回显携带既有文档：恢复而不是清零
			m.content = cast.ToString(echo[consts.FieldContent])
			m.strikeCount = cast.ToInt64(echo[consts.FieldStrikeCount])
			m.status = cast.ToString(echo[consts.FieldStatus])
			m.beginWriting()
			return nil
		case errors.Is(uerr, consts.ErrPermissionDenied):
			// 已锁定，禁止重答
			m.status = consts.StatusLocked
			m.phase = PhaseSubmitted
			m.env.ExitSandbox()
			return nil
		case errors.Is(uerr, consts.ErrNotFound):
			cerr := m.store.Create(ctx, docstore.Anonymous, consts.SessionCollection, m.sessionId, docstore.Doc{
				consts.FieldAssignmentId: m.assignmentId,
				consts.FieldStudentId:    normalized,
				consts.FieldStudentName:  studentName,
				consts.FieldTeacherId:    m.assignment.TeacherID,
				consts.FieldContent:      "",
				consts.FieldWordCount:    int64(0),
				consts.FieldStrikeCount:  int64(0),
				consts.FieldStatus:       consts.StatusActive,
			})
			if cerr == nil {
				m.content = ""
				m.strikeCount = 0
				m.status = consts.StatusActive
				m.beginWriting()
				return nil
			}
			if errors.Is(cerr, consts.ErrAlreadyExists) {
				continue // 与另一次建档撞车，重新写探测
			}
			return consts.ErrStartSession
		default:
			return consts.ErrStartSession
		}
	}
	return consts.ErrStartSession
}

// beginWriting 进入写作阶段：开启输入拦截和自动保存
func (m *Machine) beginWriting() {
	m.phase = PhaseWriting
	m.env.SetInputGuard(true)
	m.autosaveTicker = time.NewTicker(m.cfg.AutosaveInterval)
	m.autosaveC = m.autosaveTicker.C
}

// Start 一步完成拉取作业与学生报到，等价于 Load + Enter
func (m *Machine) Start(ctx context.Context, assignmentId, studentId, studentName string) error {
	if err := m.Load(ctx, assignmentId); err != nil {
		return err
	}
	return m.Enter(ctx, studentId, studentName)
}

// SetContent 正文变更，由呈现层随输入调用
func (m *Machine) SetContent(content string) {
	_ = m.do(func() {
		if m.phase != PhaseWriting || m.status != consts.StatusActive {
			return
		}
		m.content = content
	})
}

// Phase 当前阶段
func (m *Machine) Phase() Phase {
	p := PhaseSubmitted
	if err := m.do(func() { p = m.phase }); err != nil {
		return PhaseSubmitted
	}
	return p
}

// Observe 呈现层可观察状态的一致快照
func (m *Machine) Observe() Snapshot {
	var snap Snapshot
	_ = m.do(func() {
		snap = Snapshot{
			Phase:              m.phase,
			Status:             m.status,
			Content:            m.content,
			WordCount:          util.CountWords(m.content),
			StrikeCount:        m.strikeCount,
			StrikeLimit:        m.strikeLimit,
			Sandboxed:          m.sandboxed,
			CountdownRemaining: m.countdownLeft,
			AutosaveFailures:   m.autosaveFailures,
			PromptText:         m.assignment.PromptText,
		}
	})
	return snap
}

// Submit 学生主动交卷。与违规触发和倒计时触发互为幂等，先到者生效
func (m *Machine) Submit(ctx context.Context) error {
	var err error
	derr := m.do(func() { err = m.submit(ctx, m.strikeCount) })
	if derr != nil {
		return derr
	}
	return err
}

// handleSignal 环境信号入口，仅在写作阶段关心
func (m *Machine) handleSignal(sig Signal) {
	switch sig {
	case SignalSandboxRestored:
		m.sandboxed = true
		m.sandboxEntered = true
		m.clearCountdown()
	case SignalVisibilityLost, SignalFocusLost:
		if m.phase == PhaseWriting && m.status == consts.StatusActive {
			m.maybeStrike()
		}
	case SignalSandboxLost:
		m.sandboxed = false
		// 倒计时弹窗已打开时不重复计违规
		if m.phase == PhaseWriting && m.status == consts.StatusActive && !m.warningOpen {
			m.maybeStrike()
		}
	}
}

// maybeStrike 去抖：共享同一个时间戳，同一动作引发的并发信号只算一次
func (m *Machine) maybeStrike() {
	if !m.sandboxEntered {
		return
	}
	now := m.cfg.Clock()
	if now.Sub(m.lastStrikeAt) < m.cfg.StrikeDebounce {
		return
	}
	m.lastStrikeAt = now
	m.strike()
}

// strike 记违规并立即落盘，与自动保存解耦；达到上限立即强制交卷
func (m *Machine) strike() {
	m.strikeCount++
	ctx := context.Background()
	if _, err := m.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, m.sessionId, docstore.Doc{
		consts.FieldTeacherId:   m.assignment.TeacherID,
		consts.FieldStrikeCount: m.strikeCount,
	}); err != nil {
		if errors.Is(err, consts.ErrPermissionDenied) {
			// 库里已锁定，停止一切后续写入
			m.adoptLocked()
			return
		}
		log.Error("record strike %d for %s failed: %v", m.strikeCount, m.sessionId, err)
	}

	if m.strikeCount >= m.strikeLimit {
		_ = m.submit(ctx, m.strikeCount)
		return
	}
	m.openCountdown()
}

// openCountdown 弹出警告并倒计时，期限内回到全屏即撤销
func (m *Machine) openCountdown() {
	m.warningOpen = true
	m.countdownLeft = m.cfg.SandboxReturnSeconds
	if m.countdownTicker != nil {
		m.countdownTicker.Stop()
	}
	m.countdownTicker = time.NewTicker(m.cfg.CountdownTick)
	m.countdownC = m.countdownTicker.C
}

func (m *Machine) clearCountdown() {
	m.warningOpen = false
	m.countdownLeft = 0
	if m.countdownTicker != nil {
		m.countdownTicker.Stop()
		m.countdownTicker = nil
		m.countdownC = nil
	}
}

// countdownTick 倒计时到零仍未回到全屏，违规数提到上限并强制交卷
func (m *Machine) countdownTick() {
	if !m.warningOpen {
		return
	}
	m.countdownLeft--
	if m.countdownLeft > 0 {
		return
	}
	m.clearCountdown()
	if m.strikeCount < m.strikeLimit {
		m.strikeCount = m.strikeLimit
	}
	_ = m.submit(context.Background(), m.strikeCount)
}

// autosaveTick 固定节拍持久化正文。失败不致命，下一拍重试
func (m *Machine) autosaveTick() {
	if m.phase != PhaseWriting || m.status != consts.StatusActive {
		return
	}
	ctx := context.Background()
	_, err := m.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, m.sessionId, docstore.Doc{
		consts.FieldTeacherId:   m.assignment.TeacherID,
		consts.FieldContent:     m.content,
		consts.FieldWordCount:   util.CountWords(m.content),
		consts.FieldStrikeCount: m.strikeCount,
	})
	if err == nil {
		m.autosaveFailures = 0
		return
	}
	if errors.Is(err, consts.ErrPermissionDenied) {
		// 库里已锁定，自动保存不得再写
		m.adoptLocked()
		return
	}
	m.autosaveFailures++
	log.Error("autosave %s failed (%d consecutive): %v", m.sessionId, m.autosaveFailures, err)
}

// submit 终态转换。status 的原子检查就在本协程里，后到的触发者直接视为已完成
func (m *Machine) submit(ctx context.Context, strikes int64) error {
	if m.phase == PhaseSubmitted || m.status != consts.StatusActive {
		return nil
	}
	if m.phase != PhaseWriting {
		return consts.ErrSubmitSession
	}
	if strikes < m.strikeCount {
		strikes = m.strikeCount
	}
	_, err := m.store.Update(ctx, docstore.Anonymous, consts.SessionCollection, m.sessionId, docstore.Doc{
		consts.FieldTeacherId:   m.assignment.TeacherID,
		consts.FieldContent:     m.content,
		consts.FieldWordCount:   util.CountWords(m.content),
		consts.FieldStrikeCount: strikes,
		consts.FieldStatus:      consts.StatusLocked,
	})
	if err != nil {
		if errors.Is(err, consts.ErrPermissionDenied) {
			// 另一条路径已经锁定了文档，视为终态已达成
			m.adoptLocked()
			return nil
		}
		// 丢掉终态转换比停顿更糟：留在写作阶段，把错误交给呈现层
		log.CtxError(ctx, "submit %s failed: %v", m.sessionId, err)
		return consts.ErrSubmitSession
	}
	m.strikeCount = strikes
	m.adoptLocked()
	return nil
}

// adoptLocked 进入终态：冻结本地状态并拆除写作期的一切副作用
func (m *Machine) adoptLocked() {
	m.status = consts.StatusLocked
	m.phase = PhaseSubmitted
	m.clearCountdown()
	if m.autosaveTicker != nil {
		m.autosaveTicker.Stop()
		m.autosaveTicker = nil
		m.autosaveC = nil
	}
	m.env.SetInputGuard(false)
	m.env.ExitSandbox()
}

func (m *Machine) teardown() {
	m.clearCountdown()
	if m.autosaveTicker != nil {
		m.autosaveTicker.Stop()
		m.autosaveTicker = nil
		m.autosaveC = nil
	}
	if m.phase == PhaseWriting {
		m.env.SetInputGuard(false)
		m.env.ExitSandbox()
	}
}

// MachineFactory 按配置生产状态机，每个学生会话一台
type MachineFactory struct {
	Store *docstore.Store
	Cfg   *Config
}

var MachineFactorySet = wire.NewSet(
	wire.Struct(new(MachineFactory), "*"),
)

func (f *MachineFactory) New(env EnvironmentMonitor) *Machine {
	cfg := Config{}
	if f.Cfg != nil {
		cfg = *f.Cfg
	}
	return NewMachine(f.Store, env, cfg)
}
