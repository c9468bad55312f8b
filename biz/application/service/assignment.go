package service

import (
	"context"
	"crypto/rand"
	"focus-write/biz/adaptor"
	"focus-write/biz/application/dto/basic"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/config"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/repository/assignment"
	"focus-write/biz/infrastructure/util/log"
	"focus-write/biz/infrastructure/util/page"
	"math/big"

	"github.com/google/wire"
	"github.com/jinzhu/copier"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type IAssignmentService interface {
	CreateAssignment(ctx context.Context, req *write.CreateAssignmentReq) (*write.CreateAssignmentResp, error)
	GetAssignment(ctx context.Context, req *write.GetAssignmentReq) (*write.GetAssignmentResp, error)
	ListAssignments(ctx context.Context, req *write.ListAssignmentsReq) (*write.ListAssignmentsResp, error)
	DeleteAssignment(ctx context.Context, req *write.DeleteAssignmentReq) (*basic.Response, error)
}

type AssignmentService struct {
	Store *docstore.Store
}

var AssignmentServiceSet = wire.NewSet(
	wire.Struct(new(AssignmentService), "*"),
	wire.Bind(new(IAssignmentService), new(*AssignmentService)),
)

// CreateAssignment 创建写作任务并返回学生分享链接
func (s *AssignmentService) CreateAssignment(ctx context.Context, req *write.CreateAssignmentReq) (*write.CreateAssignmentResp, error) {
	// 获取用户信息
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}

	strikeLimit := int64(consts.DefaultStrikeLimit)
	if req.StrikeLimit != nil && *req.StrikeLimit > 0 {
		strikeLimit = *req.StrikeLimit
	}

	assignmentId := s.generateAssignmentId()
	err := s.Store.Create(ctx, docstore.User(userMeta.GetUserId()), consts.AssignmentCollection, assignmentId, docstore.Doc{
		consts.FieldTeacherId:    userMeta.GetUserId(),
		consts.FieldName:         req.Name,
		consts.FieldPromptText:   req.PromptText,
		consts.FieldStrikeLimit:  strikeLimit,
		consts.FieldActiveStatus: consts.StatusActive,
	})
	if err != nil {
		log.CtxError(ctx, "创建作业失败: %v", err)
		return nil, consts.ErrCreateAssignment
	}

	return &write.CreateAssignmentResp{
		AssignmentId: assignmentId,
		WriteUrl:     config.GetConfig().Api.WriteBaseURL + "/write/" + assignmentId,
	}, nil
}

// GetAssignment 任何人可读，学生报到前先取题目
func (s *AssignmentService) GetAssignment(ctx context.Context, req *write.GetAssignmentReq) (*write.GetAssignmentResp, error) {
	doc, err := s.Store.Get(ctx, docstore.Anonymous, consts.AssignmentCollection, req.AssignmentId)
	if err != nil {
		return nil, consts.ErrGetAssignment
	}
	return &write.GetAssignmentResp{
		Assignment: assignmentInfoFromDoc(doc),
	}, nil
}

// ListAssignments 教师名下的作业列表
func (s *AssignmentService) ListAssignments(ctx context.Context, req *write.ListAssignmentsReq) (*write.ListAssignmentsResp, error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}

	docs, err := s.Store.List(ctx, docstore.User(userMeta.GetUserId()), consts.AssignmentCollection, docstore.Doc{
		consts.FieldTeacherId: userMeta.GetUserId(),
	})
	if err != nil {
		log.CtxError(ctx, "获取作业列表失败: %v", err)
		return nil, consts.ErrListAssignments
	}

	skip, limit := page.ParsePageOpt(req.PaginationOptions)
	infos := lo.Map(page.Slice(docs, skip, limit), func(doc docstore.Doc, _ int) *write.AssignmentInfo {
		info := assignmentInfoFromDoc(doc)
		info.WriteUrl = config.GetConfig().Api.WriteBaseURL + "/write/" + info.Id
		return info
	})
	return &write.ListAssignmentsResp{
		Assignments: infos,
		Total:       int64(len(docs)),
	}, nil
}

// DeleteAssignment 仅归属教师可删；孤儿会话留档不级联
func (s *AssignmentService) DeleteAssignment(ctx context.Context, req *write.DeleteAssignmentReq) (*basic.Response, error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}
	err := s.Store.Delete(ctx, docstore.User(userMeta.GetUserId()), consts.AssignmentCollection, req.AssignmentId)
	if err != nil {
		log.CtxError(ctx, "删除作业失败: %v", err)
		return nil, consts.ErrDeleteAssignment
	}
	return &basic.Response{Code: 0, Msg: "ok"}, nil
}

// assignmentInfoFromDoc 文档转呈现层结构，时间字段转unix秒
func assignmentInfoFromDoc(doc docstore.Doc) *write.AssignmentInfo {
	var assn assignment.Assignment
	if err := mapstructure.WeakDecode(doc, &assn); err != nil {
		log.Error("decode assignment doc failed: %v", err)
	}
	if assn.StrikeLimit <= 0 {
		assn.StrikeLimit = consts.DefaultStrikeLimit
	}
	info := new(write.AssignmentInfo)
	_ = copier.Copy(info, &assn)
	info.CreatedAt = assn.CreatedAt.Unix()
	return info
}

// generateAssignmentId 生成对外分享的不透明短id
func (s *AssignmentService) generateAssignmentId() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	code := make([]byte, consts.AssignmentIdLength)
	for i := range code {
		randomIndex, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		code[i] = charset[randomIndex.Int64()]
	}
	return string(code)
}
