package rules

import (
	"focus-write/biz/infrastructure/consts"
	"time"

	"github.com/spf13/cast"
)

// 规则层：文档库前唯一的后端闸口。
// 每次读写都归结为一个纯函数判定 Allow(op)，入参只有
// (操作, 调用者身份, 先前文档, 提交后文档, 关联文档查询)。
// 客户端完全不可信，§3 的所有不变量都必须在这里成立。

type Kind int

const (
	KindGet Kind = iota
	KindCreate
	KindUpdate
	KindDelete
)

// Doc 无模式文档，键为 consts 中的字段名
type Doc = map[string]any

type Op struct {
	Kind       Kind
	Collection string
	ID         string
	Caller     string                          // 空串表示未认证调用者
	Prior      Doc                             // update/delete/get 时为既有文档
	Next       Doc                             // create/update 时为提交后的完整文档
	Resolve    func(collection, id string) Doc // 关联文档查询，查不到返回nil
}

// Allow 判定操作是否放行，nil 表示放行
func Allow(op Op) error {
	switch op.Collection {
	case consts.AssignmentCollection:
		return allowAssignment(op)
	case consts.SessionCollection:
		return allowSession(op)
	default:
		return consts.ErrPermissionDenied
	}
}

// allowAssignment 作业：任何人可读，仅归属教师可写
func allowAssignment(op Op) error {
	switch op.Kind {
	case KindGet:
		return nil
	case KindCreate:
		// 创建者身份必须写入 teacher_id
		if op.Caller == "" || str(op.Next, consts.FieldTeacherId) != op.Caller {
			return consts.ErrPermissionDenied
		}
		return nil
	case KindUpdate:
		if op.Caller == "" || str(op.Prior, consts.FieldTeacherId) != op.Caller {
			return consts.ErrPermissionDenied
		}
		if changed(op.Prior, op.Next, consts.FieldTeacherId) || changed(op.Prior, op.Next, consts.FieldCreatedAt) {
			return consts.ErrPermissionDenied
		}
		return nil
	case KindDelete:
		if op.Caller == "" || str(op.Prior, consts.FieldTeacherId) != op.Caller {
			return consts.ErrPermissionDenied
		}
		return nil
	}
	return consts.ErrPermissionDenied
}

// allowSession 会话：读仅限作业归属教师，写对任何人开放但受差异约束
func allowSession(op Op) error {
	switch op.Kind {
	case KindGet:
		return allowSessionRead(op)
	case KindCreate:
		return allowSessionCreate(op)
	case KindUpdate:
		return allowSessionUpdate(op)
	case KindDelete:
		// 会话永不删除，锁定后是归档产物
		return consts.ErrPermissionDenied
	}
	return consts.ErrPermissionDenied
}

// allowSessionRead 归属链校验：必须同时是会话冗余的 teacher_id（若有）
// 和所引用作业的归属教师。学生对自己的会话也没有读权限。
func allowSessionRead(op Op) error {
	if op.Caller == "" {
		return consts.ErrPermissionDenied
	}
	if tid := str(op.Prior, consts.FieldTeacherId); tid != "" && tid != op.Caller {
		return consts.ErrPermissionDenied
	}
	if op.Resolve == nil {
		return consts.ErrPermissionDenied
	}
	assignment := op.Resolve(consts.AssignmentCollection, str(op.Prior, consts.FieldAssignmentId))
	if assignment == nil || str(assignment, consts.FieldTeacherId) != op.Caller {
		return consts.ErrPermissionDenied
	}
	return nil
}

// allowSessionCreate 未认证也可建档，但文档id必须由自身字段推导
func allowSessionCreate(op Op) error {
	assignmentId := str(op.Next, consts.FieldAssignmentId)
	studentId := str(op.Next, consts.FieldStudentId)
	if assignmentId == "" || studentId == "" {
		return consts.ErrPermissionDenied
	}
	if op.ID != assignmentId+consts.SessionIdSeparator+studentId {
		return consts.ErrPermissionDenied
	}
	if cast.ToInt64(op.Next[consts.FieldStrikeCount]) != 0 {
		return consts.ErrPermissionDenied
	}
	if str(op.Next, consts.FieldStatus) != consts.StatusActive {
		return consts.ErrPermissionDenied
	}
	if _, ok := op.Next[consts.FieldSubmittedAt]; ok {
		return consts.ErrPermissionDenied
	}
	return teacherIdConsistent(op, op.Next)
}

// allowSessionUpdate 差异校验：身份字段不可变，违规数单调不减，
// 状态只许 active→active 或 active→locked
func allowSessionUpdate(op Op) error {
	if changed(op.Prior, op.Next, consts.FieldAssignmentId) ||
		changed(op.Prior, op.Next, consts.FieldStudentId) ||
		changed(op.Prior, op.Next, consts.FieldCreatedAt) {
		return consts.ErrPermissionDenied
	}
	if cast.ToInt64(op.Next[consts.FieldStrikeCount]) < cast.ToInt64(op.Prior[consts.FieldStrikeCount]) {
		return consts.ErrPermissionDenied
	}
	priorStatus := str(op.Prior, consts.FieldStatus)
	nextStatus := str(op.Next, consts.FieldStatus)
	if priorStatus != consts.StatusActive {
		// locked 是终态
		return consts.ErrPermissionDenied
	}
	if nextStatus != consts.StatusActive && nextStatus != consts.StatusLocked {
		return consts.ErrPermissionDenied
	}
	// submitted_at 只在锁定那一次写入
	if _, ok := op.Next[consts.FieldSubmittedAt]; ok && nextStatus != consts.StatusLocked {
		return consts.ErrPermissionDenied
	}
	if changed(op.Prior, op.Next, consts.FieldTeacherId) {
		// 已建的归属冗余不许抹掉，改写只许改成真正的归属教师
		if str(op.Next, consts.FieldTeacherId) == "" {
			return consts.ErrPermissionDenied
		}
		return teacherIdConsistent(op, op.Next)
	}
	return nil
}

// teacherIdConsistent 冗余的 teacher_id 只能取所引用作业的归属教师，
// 否则未认证写路径可以借它把会话塞进别人的订阅流
func teacherIdConsistent(op Op, next Doc) error {
	tid := str(next, consts.FieldTeacherId)
	if tid == "" {
		return nil
	}
	if op.Resolve == nil {
		return consts.ErrPermissionDenied
	}
	assignment := op.Resolve(consts.AssignmentCollection, str(next, consts.FieldAssignmentId))
	if assignment == nil || str(assignment, consts.FieldTeacherId) != tid {
		return consts.ErrPermissionDenied
	}
	return nil
}

func str(doc Doc, key string) string {
	if doc == nil {
		return ""
	}
	return cast.ToString(doc[key])
}

// changed 字段是否被本次写入改动，时间字段按时刻比较
func changed(prior, next Doc, key string) bool {
	a, aok := prior[key]
	b, bok := next[key]
	if !aok && !bok {
		return false
	}
	if at, ok := a.(time.Time); ok {
		bt, ok2 := b.(time.Time)
		return !ok2 || !at.Equal(bt)
	}
	return cast.ToString(a) != cast.ToString(b)
}
