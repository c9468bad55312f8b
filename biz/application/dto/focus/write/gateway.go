package write

// 学生写入网关的载荷。网关不做任何业务校验，
// 字段原样递交文档库，放行与否由规则层裁决

type StartWriteReq struct {
	AssignmentId string `form:"assignmentId" json:"assignmentId" query:"assignmentId" vd:"len($)>0"`
	StudentId    string `form:"studentId" json:"studentId" query:"studentId" vd:"len($)>0"`
	StudentName  string `form:"studentName" json:"studentName" query:"studentName"`
}

type StartWriteResp struct {
	Session *SessionInfo `json:"session"`
}

type SaveWriteReq struct {
	SessionId   string  `form:"sessionId" json:"sessionId" query:"sessionId" vd:"len($)>0"`
	Content     *string `form:"content" json:"content" query:"content"`
	WordCount   *int64  `form:"wordCount" json:"wordCount" query:"wordCount"`
	StrikeCount *int64  `form:"strikeCount" json:"strikeCount" query:"strikeCount"`
	TeacherId   *string `form:"teacherId" json:"teacherId" query:"teacherId"`
}

type SaveWriteResp struct {
	Session *SessionInfo `json:"session"`
}

type SubmitWriteReq struct {
	SessionId   string  `form:"sessionId" json:"sessionId" query:"sessionId" vd:"len($)>0"`
	Content     *string `form:"content" json:"content" query:"content"`
	WordCount   *int64  `form:"wordCount" json:"wordCount" query:"wordCount"`
	StrikeCount *int64  `form:"strikeCount" json:"strikeCount" query:"strikeCount"`
}

type SubmitWriteResp struct {
	Session *SessionInfo `json:"session"`
}
