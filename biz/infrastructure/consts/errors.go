package consts

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Errno struct {
	err  error
	code codes.Code
}

// GRPCStatus 实现 GRPCStatus 方法
func (en *Errno) GRPCStatus() *status.Status {
	return status.New(en.code, en.err.Error())
}

// 实现 Error 方法
func (en *Errno) Error() string {
	return en.err.Error()
}

// NewErrno 创建自定义错误
func NewErrno(code codes.Code, err error) *Errno {
	return &Errno{
		err:  err,
		code: code,
	}
}

// Code 返回错误码
func (en *Errno) Code() codes.Code {
	return en.code
}

// 文档库错误：规则层对每次读写的裁决结果
var (
	ErrNotFound         = NewErrno(codes.NotFound, errors.New("not found"))
	ErrPermissionDenied = NewErrno(codes.PermissionDenied, errors.New("permission denied"))
	ErrAlreadyExists    = NewErrno(codes.AlreadyExists, errors.New("already exists"))
	ErrTransient        = NewErrno(codes.Unavailable, errors.New("store unavailable, retry"))
)

// 定义常量错误
var (
	ErrNotAuthentication     = NewErrno(codes.Code(1000), errors.New("not authentication"))
	ErrCreateAssignment      = NewErrno(codes.Code(1001), errors.New("创建作业失败，请重试"))
	ErrGetAssignment         = NewErrno(codes.Code(1002), errors.New("作业不存在或已删除"))
	ErrListAssignments       = NewErrno(codes.Code(1003), errors.New("获取作业列表失败"))
	ErrDeleteAssignment      = NewErrno(codes.Code(1004), errors.New("删除作业失败"))
	ErrListSessions          = NewErrno(codes.Code(1005), errors.New("获取答卷列表失败"))
	ErrGetSession            = NewErrno(codes.Code(1006), errors.New("获取答卷失败"))
	ErrExportSession         = NewErrno(codes.Code(1007), errors.New("导出答卷失败"))
	ErrSessionNotLocked      = NewErrno(codes.Code(1008), errors.New("答卷尚未提交，无法导出"))
	ErrStartSession          = NewErrno(codes.Code(1009), errors.New("开始写作失败，请重试"))
	ErrSessionLocked         = NewErrno(codes.Code(1010), errors.New("答卷已提交，不可再修改"))
	ErrSubmitSession         = NewErrno(codes.Code(1011), errors.New("提交失败，请重试"))
	ErrEmptyStudentId        = NewErrno(codes.Code(1012), errors.New("学号不能为空"))
	ErrSandboxUnavailable    = NewErrno(codes.FailedPrecondition, errors.New("无法进入全屏写作模式"))
	ErrMachineClosed         = NewErrno(codes.Code(1013), errors.New("写作会话已结束"))
	ErrArchiveSession        = NewErrno(codes.Code(1014), errors.New("归档答卷失败"))
)

// ErrInvalidParams 调用时错误
var (
	ErrInvalidParams = NewErrno(codes.InvalidArgument, errors.New("参数错误"))
	ErrCall          = NewErrno(codes.Unknown, errors.New("调用接口失败，请重试"))
)
