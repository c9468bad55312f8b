package apigateway

import (
	"context"
	"focus-write/biz/adaptor"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/provider"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// 学生写入网关的三个入口。全部未认证，规则层是唯一闸口

// StartWriteV1 学生报到建档
func StartWriteV1(ctx context.Context, c *app.RequestContext) {
	var req write.StartWriteReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.WriteGatewayService.StartWrite(ctx, &req)
	respond(ctx, c, resp, err)
}

// SaveWriteV1 自动保存/违规计数落盘
func SaveWriteV1(ctx context.Context, c *app.RequestContext) {
	var req write.SaveWriteReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.WriteGatewayService.SaveWrite(ctx, &req)
	respond(ctx, c, resp, err)
}

// SubmitWriteV1 交卷锁定
func SubmitWriteV1(ctx context.Context, c *app.RequestContext) {
	var req write.SubmitWriteReq
	if err := c.BindAndValidate(&req); err != nil {
		c.String(consts.StatusBadRequest, err.Error())
		return
	}
	ctx = adaptor.InjectContext(ctx, c)

	p := provider.Get()
	resp, err := p.WriteGatewayService.SubmitWrite(ctx, &req)
	respond(ctx, c, resp, err)
}
