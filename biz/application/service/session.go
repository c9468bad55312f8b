package service

import (
	"context"
	"focus-write/biz/adaptor"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/cache"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/repository/session"
	"focus-write/biz/infrastructure/util/log"
	"focus-write/biz/infrastructure/util/page"
	"strings"

	"github.com/google/wire"
	"github.com/jinzhu/copier"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

type ISessionService interface {
	ListSessions(ctx context.Context, req *write.ListSessionsReq) (*write.ListSessionsResp, error)
	GetSession(ctx context.Context, req *write.GetSessionReq) (*write.GetSessionResp, error)
	ExportSession(ctx context.Context, req *write.ExportSessionReq) (*write.ExportSessionResp, error)
	WatchSessions(ctx context.Context, req *write.WatchSessionsReq) (<-chan docstore.Event, func(), error)
}

type SessionService struct {
	Store       *docstore.Store
	ExportCache cache.IExportCacheMapper
}

var SessionServiceSet = wire.NewSet(
	wire.Struct(new(SessionService), "*"),
	wire.Bind(new(ISessionService), new(*SessionService)),
)

// ListSessions 一次作业下的全部答卷，归属链由读规则裁决
func (s *SessionService) ListSessions(ctx context.Context, req *write.ListSessionsReq) (*write.ListSessionsResp, error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}

	docs, err := s.Store.List(ctx, docstore.User(userMeta.GetUserId()), consts.SessionCollection, docstore.Doc{
		consts.FieldAssignmentId: req.AssignmentId,
	})
	if err != nil {
		log.CtxError(ctx, "获取答卷列表失败: %v", err)
		return nil, consts.ErrListSessions
	}

	skip, limit := page.ParsePageOpt(req.PaginationOptions)
	infos := lo.Map(page.Slice(docs, skip, limit), func(doc docstore.Doc, _ int) *write.SessionInfo {
		return SessionInfoFromDoc(doc)
	})
	return &write.ListSessionsResp{
		Sessions: infos,
		Total:    int64(len(docs)),
	}, nil
}

// GetSession 单份答卷
func (s *SessionService) GetSession(ctx context.Context, req *write.GetSessionReq) (*write.GetSessionResp, error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}
	doc, err := s.Store.Get(ctx, docstore.User(userMeta.GetUserId()), consts.SessionCollection, req.SessionId)
	if err != nil {
		return nil, consts.ErrGetSession
	}
	return &write.GetSessionResp{Session: SessionInfoFromDoc(doc)}, nil
}

// ExportSession 导出已锁定答卷为纯文本附件，结果进缓存
func (s *SessionService) ExportSession(ctx context.Context, req *write.ExportSessionReq) (*write.ExportSessionResp, error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, consts.ErrNotAuthentication
	}
	return s.exportLocked(ctx, userMeta.GetUserId(), req.SessionId)
}

// exportLocked 缓存键带上调用者：命中项都是本人通过读规则拿到过的结果，
// 缓存不会替别的教师绕开归属链
func (s *SessionService) exportLocked(ctx context.Context, userId, sessionId string) (*write.ExportSessionResp, error) {
	cacheId := userId + ":" + sessionId
	if cached, err := s.ExportCache.Get(ctx, cacheId); err == nil {
		return cached, nil
	}

	doc, err := s.Store.Get(ctx, docstore.User(userId), consts.SessionCollection, sessionId)
	if err != nil {
		return nil, consts.ErrGetSession
	}
	info := SessionInfoFromDoc(doc)
	if info.Status != consts.StatusLocked {
		return nil, consts.ErrSessionNotLocked
	}

	resp := &write.ExportSessionResp{
		FileName: ExportFileName(info.StudentId, info.StudentName),
		Content:  info.Content,
	}
	if err := s.ExportCache.Set(ctx, cacheId, resp); err != nil {
		log.CtxError(ctx, "缓存导出结果失败: %v", err)
		// 缓存失败不影响导出
	}
	return resp, nil
}

// WatchSessions 订阅答卷变更，先快照后增量，由控制器转成SSE
func (s *SessionService) WatchSessions(ctx context.Context, req *write.WatchSessionsReq) (<-chan docstore.Event, func(), error) {
	userMeta := adaptor.ExtractUserMeta(ctx)
	if userMeta.GetUserId() == "" {
		return nil, nil, consts.ErrNotAuthentication
	}
	filter := docstore.Doc{}
	if req.AssignmentId != nil && *req.AssignmentId != "" {
		filter[consts.FieldAssignmentId] = *req.AssignmentId
	}
	return s.Store.Subscribe(ctx, docstore.User(userMeta.GetUserId()), consts.SessionCollection, filter)
}

// ExportFileName 导出文件名：学号[_姓名]_submission.txt，空白折叠为下划线
func ExportFileName(studentId, studentName string) string {
	namePart := studentId
	if studentName != "" {
		namePart = studentId + "_" + studentName
	}
	namePart = strings.Join(strings.Fields(namePart), "_")
	return namePart + "_submission.txt"
}

// SessionInfoFromDoc 文档转呈现层结构，时间字段转unix秒
func SessionInfoFromDoc(doc docstore.Doc) *write.SessionInfo {
	var sess session.Session
	if err := mapstructure.WeakDecode(doc, &sess); err != nil {
		log.Error("decode session doc failed: %v", err)
	}
	info := new(write.SessionInfo)
	_ = copier.Copy(info, &sess)
	info.CreatedAt = sess.CreatedAt.Unix()
	info.UpdatedAt = sess.UpdatedAt.Unix()
	if sess.SubmittedAt != nil {
		ts := sess.SubmittedAt.Unix()
		info.SubmittedAt = &ts
	}
	return info
}
