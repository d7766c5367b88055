package controller

import (
	"context"
	"errors"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/service"
	"edulink_backend/internal/store"
	"edulink_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	Hub     *service.ChatHub
	Gateway gateway.Gateway
}

func NewChatController(hub *service.ChatHub, gw gateway.Gateway) *ChatController {
	return &ChatController{Hub: hub, Gateway: gw}
}

// checkRoomMembership 学生必须选修了对应课程才能进入聊天室；教师与管理员放行
func (c *ChatController) checkRoomMembership(ctx context.Context, claims *util.Claims, roomID string) error {
	if claims.Role == model.Teacher || claims.Role == model.Admin {
		return nil
	}

	raw, err := c.Gateway.Get(ctx, gateway.CollectionUsers, claims.Email)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return util.ErrNotRoomMember
		}
		return err
	}

	var user model.User
	if err := gateway.Decode(raw, &user); err != nil {
		return err
	}
	for _, id := range user.CourseIDs {
		if id == roomID {
			return nil
		}
	}
	return util.ErrNotRoomMember
}

// roomStore 优先复用 Hub 里活跃房间的消息仓库；
// 房间不活跃时构造临时仓库并从网关回填历史，保证 REST 路径独立可用
func (c *ChatController) roomStore(ctx context.Context, roomID string) (*store.MessageStore, error) {
	if st := c.Hub.RoomStore(roomID); st != nil {
		return st, nil
	}

	st := store.NewMessageStore(roomID, c.Gateway)
	docs, err := c.Gateway.Query(ctx, gateway.CollectionChatMessages, gateway.Filter{"roomId": roomID}, "timestamp")
	if err != nil {
		return nil, err
	}
	msgs, err := gateway.DecodeAll[model.ChatMessage](docs)
	if err != nil {
		return nil, err
	}
	st.ApplySnapshot(msgs)
	return st, nil
}

// @Summary 进入聊天室
// @Description 升级为 WebSocket 连接，加入课程聊天室并接收实时消息
// @Tags 聊天
// @Security BearerAuth
// @Param roomId path string true "聊天室ID（课程ID）"
// @Param token query string false "JWT（WebSocket 握手无法携带 Header 时使用）"
// @Router /api/chat/rooms/{roomId}/ws [get]
func (c *ChatController) HandleWS(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	roomID := ctx.Param("roomId")

	if err := c.checkRoomMembership(ctx.Request.Context(), claims, roomID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, claims, roomID)
}

// @Summary 聊天历史
// @Description 当前用户可见的聊天室消息，按时间升序
// @Tags 聊天
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "聊天室ID"
// @Success 200 {object} util.Response
// @Router /api/chat/rooms/{roomId}/messages [get]
func (c *ChatController) GetMessages(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	roomID := ctx.Param("roomId")

	if err := c.checkRoomMembership(ctx.Request.Context(), claims, roomID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	st, err := c.roomStore(ctx.Request.Context(), roomID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"roomId":   roomID,
		"messages": st.VisibleTo(claims.Email),
	})
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// @Summary 发送消息
// @Description WebSocket 之外的 REST 发送通道
// @Tags 聊天
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "聊天室ID"
// @Param message body sendMessageRequest true "消息内容"
// @Success 201 {object} util.Response
// @Router /api/chat/rooms/{roomId}/messages [post]
func (c *ChatController) SendMessage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	roomID := ctx.Param("roomId")

	if err := c.checkRoomMembership(ctx.Request.Context(), claims, roomID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	var req sendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	st, err := c.roomStore(ctx.Request.Context(), roomID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	msg, err := st.Append(claims.Email, req.Text)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, msg)
}

// @Summary 删除消息（仅自己不可见）
// @Description 把消息加入当前用户的屏蔽列表，其他成员仍可见
// @Tags 聊天
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "聊天室ID"
// @Param messageId path string true "消息ID"
// @Success 200 {object} util.Response
// @Router /api/chat/rooms/{roomId}/messages/{messageId}/hide [post]
func (c *ChatController) HideForMe(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	roomID := ctx.Param("roomId")
	messageID := ctx.Param("messageId")

	if err := c.checkRoomMembership(ctx.Request.Context(), claims, roomID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	st, err := c.roomStore(ctx.Request.Context(), roomID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	if err := st.HideFor(messageID, claims.Email); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 撤回消息（所有人不可见）
// @Description 从聊天室彻底删除消息，仅消息发送者可操作
// @Tags 聊天
// @Produce json
// @Security BearerAuth
// @Param roomId path string true "聊天室ID"
// @Param messageId path string true "消息ID"
// @Success 200 {object} util.Response
// @Router /api/chat/rooms/{roomId}/messages/{messageId} [delete]
func (c *ChatController) DeleteForEveryone(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	roomID := ctx.Param("roomId")
	messageID := ctx.Param("messageId")

	if err := c.checkRoomMembership(ctx.Request.Context(), claims, roomID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	st, err := c.roomStore(ctx.Request.Context(), roomID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	msg, err := st.Get(messageID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	if msg.SenderEmail != claims.Email {
		util.Forbidden(ctx)
		return
	}

	if err := st.DeleteGlobal(messageID); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 用户在线状态
// @Tags 聊天
// @Produce json
// @Security BearerAuth
// @Param email path string true "用户邮箱"
// @Success 200 {object} util.Response
// @Router /api/chat/online/{email} [get]
func (c *ChatController) IsOnline(ctx *gin.Context) {
	email := ctx.Param("email")
	util.Success(ctx, gin.H{
		"email":  email,
		"online": c.Hub.IsUserOnline(email),
	})
}
