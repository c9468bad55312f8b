package apigateway

import (
	"context"
	"errors"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/util/log"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"google.golang.org/grpc/codes"
)

// respond 统一出口：成功回200，Errno按gRPC码映射HTTP状态
func respond(ctx context.Context, c *app.RequestContext, resp any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	log.CtxError(ctx, "request failed: %v", err)
	var en *consts.Errno
	if !errors.As(err, &en) {
		c.JSON(http.StatusInternalServerError, map[string]any{
			"code":    int(codes.Unknown),
			"message": err.Error(),
		})
		return
	}
	c.JSON(httpStatus(en.Code()), map[string]any{
		"code":    int(en.Code()),
		"message": en.Error(),
	})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
