package apigateway

import (
	"context"
	"focus-write/biz/adaptor"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/util"
	"focus-write/biz/infrastructure/util/log"
	"focus-write/provider"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CreateAssignmentV1 教师创建写作任务
func CreateAssignmentV1(ctx context.Context, c *app.RequestContext) {
	var req write.CreateAssignmentReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)
	log.CtxInfo(ctx, "[CreateAssignmentV1] req=%s", util.JSONF(&req))

	p := provider.Get()
	resp, err := p.AssignmentService.CreateAssignment(ctx, &req)
	respond(ctx, c, resp, err)
}

// GetAssignmentV1 学生取题，无需认证
func GetAssignmentV1(ctx context.Context, c *app.RequestContext) {
	var req write.GetAssignmentReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.AssignmentService.GetAssignment(ctx, &req)
	respond(ctx, c, resp, err)
}

// ListAssignmentsV1 教师名下作业列表
func ListAssignmentsV1(ctx context.Context, c *app.RequestContext) {
	var req write.ListAssignmentsReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.AssignmentService.ListAssignments(ctx, &req)
	respond(ctx, c, resp, err)
}

// DeleteAssignmentV1 教师删除作业
func DeleteAssignmentV1(ctx context.Context, c *app.RequestContext) {
	var req write.DeleteAssignmentReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)
	log.CtxInfo(ctx, "[DeleteAssignmentV1] req=%s", util.JSONF(&req))

	p := provider.Get()
	resp, err := p.AssignmentService.DeleteAssignment(ctx, &req)
	respond(ctx, c, resp, err)
}
