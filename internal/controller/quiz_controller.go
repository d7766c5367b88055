package controller

import (
	"edulink_backend/internal/service"
	"edulink_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// @Summary 提交测验
// @Description 由一轮完整作答构建测验记录并写入，每个测验每用户只允许一次
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quiz body service.SubmitQuizRequest true "作答内容"
// @Success 201 {object} util.Response
// @Router /api/quizzes/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.QuizService.BuildAttempt(user.Email, req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	if err := c.QuizService.Submit(ctx.Request.Context(), attempt); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary 我的测验成绩
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/result [get]
func (c *QuizController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.QuizService.GetResult(ctx.Request.Context(), ctx.Param("quizId"), user.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 测验成绩单
// @Description 测验记录的展示聚合：百分比、配色分级与状态标签
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/review [get]
func (c *QuizController) GetReview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.QuizService.GetResult(ctx.Request.Context(), ctx.Param("quizId"), user.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, service.BuildQuizReview(attempt))
}
