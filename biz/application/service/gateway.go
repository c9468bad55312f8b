package service

import (
	"context"
	"errors"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/util"

	"github.com/google/wire"
	"github.com/spf13/cast"
)

// 学生写入网关。协议上没有居中校验写入的应用服务器，
// 这里只把载荷原样递交文档库，放行与否完全由规则层裁决。
// 身份一律为未认证：学生路径本来就不持有任何凭证

type IWriteGatewayService interface {
	StartWrite(ctx context.Context, req *write.StartWriteReq) (*write.StartWriteResp, error)
	SaveWrite(ctx context.Context, req *write.SaveWriteReq) (*write.SaveWriteResp, error)
	SubmitWrite(ctx context.Context, req *write.SubmitWriteReq) (*write.SubmitWriteResp, error)
}

type WriteGatewayService struct {
	Store *docstore.Store
}

var WriteGatewayServiceSet = wire.NewSet(
	wire.Struct(new(WriteGatewayService), "*"),
	wire.Bind(new(IWriteGatewayService), new(*WriteGatewayService)),
)

// StartWrite 建档。id由字段推导，与规则层的校验口径一致；
// teacher_id 从作业文档冗余过来，教师端订阅靠它过滤
func (s *WriteGatewayService) StartWrite(ctx context.Context, req *write.StartWriteReq) (*write.StartWriteResp, error) {
	assignment, err := s.Store.Get(ctx, docstore.Anonymous, consts.AssignmentCollection, req.AssignmentId)
	if err != nil {
		return nil, consts.ErrGetAssignment
	}
	studentId := util.NormalizeStudentId(req.StudentId)
	sessionId := util.SessionId(req.AssignmentId, studentId)
	err = s.Store.Create(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{
		consts.FieldAssignmentId: req.AssignmentId,
		consts.FieldStudentId:    studentId,
		consts.FieldStudentName:  req.StudentName,
		consts.FieldTeacherId:    cast.ToString(assignment[consts.FieldTeacherId]),
		consts.FieldContent:      "",
		consts.FieldWordCount:    int64(0),
		consts.FieldStrikeCount:  int64(0),
		consts.FieldStatus:       consts.StatusActive,
	})
	if err != nil && !errors.Is(err, consts.ErrAlreadyExists) {
		return nil, err
	}
	// 已存在即续写，空更新换取回显恢复现场
	echo, err := s.Store.Update(ctx, docstore.Anonymous, consts.SessionCollection, sessionId, docstore.Doc{})
	if err != nil {
		return nil, err
	}
	return &write.StartWriteResp{Session: SessionInfoFromDoc(echo)}, nil
}

// SaveWrite 部分更新，只带客户端给出的字段
func (s *WriteGatewayService) SaveWrite(ctx context.Context, req *write.SaveWriteReq) (*write.SaveWriteResp, error) {
	fields := docstore.Doc{}
	if req.Content != nil {
		fields[consts.FieldContent] = *req.Content
		fields[consts.FieldWordCount] = util.CountWords(*req.Content)
	}
	if req.WordCount != nil {
		fields[consts.FieldWordCount] = *req.WordCount
	}
	if req.StrikeCount != nil {
		fields[consts.FieldStrikeCount] = *req.StrikeCount
	}
	if req.TeacherId != nil {
		fields[consts.FieldTeacherId] = *req.TeacherId
	}
	echo, err := s.Store.Update(ctx, docstore.Anonymous, consts.SessionCollection, req.SessionId, fields)
	if err != nil {
		return nil, err
	}
	return &write.SaveWriteResp{Session: SessionInfoFromDoc(echo)}, nil
}

// SubmitWrite 锁定答卷，submitted_at 由文档库补打
func (s *WriteGatewayService) SubmitWrite(ctx context.Context, req *write.SubmitWriteReq) (*write.SubmitWriteResp, error) {
	fields := docstore.Doc{
		consts.FieldStatus: consts.StatusLocked,
	}
	if req.Content != nil {
		fields[consts.FieldContent] = *req.Content
		fields[consts.FieldWordCount] = util.CountWords(*req.Content)
	}
	if req.WordCount != nil {
		fields[consts.FieldWordCount] = *req.WordCount
	}
	if req.StrikeCount != nil {
		fields[consts.FieldStrikeCount] = *req.StrikeCount
	}
	echo, err := s.Store.Update(ctx, docstore.Anonymous, consts.SessionCollection, req.SessionId, fields)
	if err != nil {
		return nil, err
	}
	return &write.SubmitWriteResp{Session: SessionInfoFromDoc(echo)}, nil
}
