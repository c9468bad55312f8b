package proctor

import (
	"context"
)

// 环境信号。切换标签页这类动作会同时触发可见性和焦点两个信号，
// 去抖由状态机统一处理，监视器只负责如实上报。

type Signal int

const (
	SignalVisibilityLost Signal = iota // 页面不可见
	SignalFocusLost                    // 窗口失焦
	SignalSandboxLost                  // 退出全屏写作模式
	SignalSandboxRestored              // 回到全屏写作模式
)

func (s Signal) String() string {
	switch s {
	case SignalVisibilityLost:
		return "visibility_lost"
	case SignalFocusLost:
		return "focus_lost"
	case SignalSandboxLost:
		return "sandbox_lost"
	case SignalSandboxRestored:
		return "sandbox_restored"
	default:
		return "unknown"
	}
}

// EnvironmentMonitor 宿主环境能力，由接入方注入。
// 状态机不直接挂全局监听，否则去抖和升级逻辑没法离线验证
type EnvironmentMonitor interface {
	// Signals 环境信号流，实现方应带缓冲，状态机处理网络往返时信号排队
	Signals() <-chan Signal
	// RequestSandbox 请求进入全屏写作模式，失败即拒绝进入写作阶段
	RequestSandbox(ctx context.Context) error
	// ExitSandbox 离开全屏写作模式，提交后无条件调用
	ExitSandbox()
	// Sandboxed 当前是否处于全屏写作模式
	Sandboxed() bool
	// SetInputGuard 开关复制/剪切/粘贴/拖放拦截，仅在写作阶段开启
	SetInputGuard(enabled bool)
}
