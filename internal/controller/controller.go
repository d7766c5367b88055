package controller

import (
	"errors"
	"net/http"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// handleServiceError 把服务层的类型化错误映射为 HTTP 状态码
func handleServiceError(ctx *gin.Context, err error) {
	switch {
	case util.IsValidation(err):
		util.BadRequest(ctx, err.Error())
	case util.IsNotFound(err) || errors.Is(err, gateway.ErrNotFound):
		util.NotFound(ctx)
	case util.IsInvalidTransition(err):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrPermissionDenied) || errors.Is(err, util.ErrNotRoomMember):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
