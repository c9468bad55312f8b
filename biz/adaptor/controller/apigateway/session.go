package apigateway

import (
	"context"
	"encoding/json"
	"fmt"
	"focus-write/biz/adaptor"
	"focus-write/biz/application/dto/focus/write"
	consts2 "focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/util/log"
	"focus-write/provider"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
)

// ListSessionsV1 教师查看一次作业下的全部答卷
func ListSessionsV1(ctx context.Context, c *app.RequestContext) {
	var req write.ListSessionsReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.SessionService.ListSessions(ctx, &req)
	respond(ctx, c, resp, err)
}

// GetSessionV1 教师查看单份答卷
func GetSessionV1(ctx context.Context, c *app.RequestContext) {
	var req write.GetSessionReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.SessionService.GetSession(ctx, &req)
	respond(ctx, c, resp, err)
}

// ExportSessionV1 导出已锁定答卷为txt附件
func ExportSessionV1(ctx context.Context, c *app.RequestContext) {
	var req write.ExportSessionReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.SessionService.ExportSession(ctx, &req)
	if err != nil {
		respond(ctx, c, nil, err)
		return
	}
	c.Response.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, resp.FileName))
	c.Data(http.StatusOK, consts2.ContentTypeText, []byte(resp.Content))
}

// WatchSessionsV1 答卷变更的SSE流：先快照后增量，客户端断开即止
func WatchSessionsV1(ctx context.Context, c *app.RequestContext) {
	var req write.WatchSessionsReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	events, cancel, err := p.SessionService.WatchSessions(ctx, &req)
	if err != nil {
		respond(ctx, c, nil, err)
		return
	}
	defer cancel()

	c.SetStatusCode(http.StatusOK)
	w := sse.NewWriter(c)
	for ev := range events {
		data, merr := json.Marshal(ev)
		if merr != nil {
			log.CtxError(ctx, "序列化变更事件失败: %v", merr)
			continue
		}
		if werr := w.WriteEvent("", string(ev.Kind), data); werr != nil {
			log.CtxInfo(ctx, "watch stream closed: %v", werr)
			break
		}
	}
}
