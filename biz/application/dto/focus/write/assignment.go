package write

import "focus-write/biz/application/dto/basic"

type AssignmentInfo struct {
	Id           string `json:"id" copier:"ID"`
	Name         string `json:"name,omitempty"`
	PromptText   string `json:"promptText"`
	StrikeLimit  int64  `json:"strikeLimit"`
	ActiveStatus string `json:"activeStatus"`
	CreatedAt    int64  `json:"createdAt"`
	WriteUrl     string `json:"writeUrl,omitempty"`
}

type CreateAssignmentReq struct {
	Name        string `form:"name" json:"name" query:"name"`
	PromptText  string `form:"promptText" json:"promptText" query:"promptText" vd:"len($)>0"`
	StrikeLimit *int64 `form:"strikeLimit" json:"strikeLimit" query:"strikeLimit"`
}

type CreateAssignmentResp struct {
	AssignmentId string `json:"assignmentId"`
	WriteUrl     string `json:"writeUrl"`
}

type GetAssignmentReq struct {
	AssignmentId string `form:"assignmentId" json:"assignmentId" query:"assignmentId" vd:"len($)>0"`
}

type GetAssignmentResp struct {
	Assignment *AssignmentInfo `json:"assignment"`
}

type ListAssignmentsReq struct {
	PaginationOptions *basic.PaginationOptions `form:"paginationOptions" json:"paginationOptions" query:"paginationOptions"`
}

type ListAssignmentsResp struct {
	Assignments []*AssignmentInfo `json:"assignments"`
	Total       int64             `json:"total"`
}

type DeleteAssignmentReq struct {
	AssignmentId string `form:"assignmentId" json:"assignmentId" query:"assignmentId" vd:"len($)>0"`
}
