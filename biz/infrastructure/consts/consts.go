package consts

var PageSize int64 = 10

// 数据库相关
const (
	ID                   = "_id"
	AssignmentCollection = "assignments"
	SessionCollection    = "sessions"

	FieldName         = "name"
	FieldAssignmentId = "assignment_id"
	FieldStudentId    = "student_id"
	FieldStudentName  = "student_name"
	FieldTeacherId    = "teacher_id"
	FieldPromptText   = "prompt_text"
	FieldStrikeLimit  = "strike_limit"
	FieldActiveStatus = "active_status"
	FieldContent      = "content"
	FieldWordCount    = "word_count"
	FieldStrikeCount  = "strike_count"
	FieldStatus       = "status"
	FieldCreatedAt    = "created_at"
	FieldUpdatedAt    = "updated_at"
	FieldSubmittedAt  = "submitted_at"
)

// 会话状态
const (
	StatusActive = "active"
	StatusLocked = "locked"

	SessionIdSeparator = "_"
)

// http
const (
	Post            = "POST"
	ContentTypeJson = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	CharSetUTF8     = "UTF-8"
)

// 默认值
const (
	DefaultStrikeLimit          = 3
	DefaultStrikeDebounceMs     = 800
	DefaultAutosaveIntervalMs   = 4000
	DefaultSandboxReturnSeconds = 10
	AssignmentIdLength          = 10
)
