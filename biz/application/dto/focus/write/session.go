package write

import "focus-write/biz/application/dto/basic"

type SessionInfo struct {
	Id           string `json:"id" copier:"ID"`
	AssignmentId string `json:"assignmentId" copier:"AssignmentID"`
	StudentId    string `json:"studentId" copier:"StudentID"`
	StudentName  string `json:"studentName,omitempty"`
	TeacherId    string `json:"teacherId,omitempty" copier:"TeacherID"`
	Content      string `json:"content"`
	WordCount    int64  `json:"wordCount"`
	StrikeCount  int64  `json:"strikeCount"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	SubmittedAt  *int64 `json:"submittedAt,omitempty"`
}

type ListSessionsReq struct {
	AssignmentId      string                   `form:"assignmentId" json:"assignmentId" query:"assignmentId" vd:"len($)>0"`
	PaginationOptions *basic.PaginationOptions `form:"paginationOptions" json:"paginationOptions" query:"paginationOptions"`
}

type ListSessionsResp struct {
	Sessions []*SessionInfo `json:"sessions"`
	Total    int64          `json:"total"`
}

type GetSessionReq struct {
	SessionId string `form:"sessionId" json:"sessionId" query:"sessionId" vd:"len($)>0"`
}

type GetSessionResp struct {
	Session *SessionInfo `json:"session"`
}

type WatchSessionsReq struct {
	AssignmentId *string `form:"assignmentId" json:"assignmentId" query:"assignmentId"`
}

type ExportSessionReq struct {
	SessionId string `form:"sessionId" json:"sessionId" query:"sessionId" vd:"len($)>0"`
}

type ExportSessionResp struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}
