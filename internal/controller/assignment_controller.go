package controller

import (
	"edulink_backend/internal/repository"
	"edulink_backend/internal/service"
	"edulink_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	SubmissionService *service.SubmissionService
	AttemptRepo       *repository.AttemptRepository
}

func NewAssignmentController(submissionService *service.SubmissionService, attemptRepo *repository.AttemptRepository) *AssignmentController {
	return &AssignmentController{SubmissionService: submissionService, AttemptRepo: attemptRepo}
}

// @Summary 提交作业
// @Description 上传作业图片并创建批改尝试，重复提交返回 409
// @Tags 作业
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission body service.SubmitAssignmentRequest true "作业内容"
// @Success 201 {object} util.Response
// @Router /api/assignments/submit [post]
func (c *AssignmentController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitAssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.SubmissionService.Submit(ctx.Request.Context(), user.Email, req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary 作业状态
// @Description 当前用户在某作业上的状态: not_started / submitted / graded / failed
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{assignmentId}/state [get]
func (c *AssignmentController) GetState(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	state, err := c.SubmissionService.CurrentState(ctx.Request.Context(), ctx.Param("assignmentId"), user.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": state})
}

// @Summary 我的作业尝试
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{assignmentId}/attempt [get]
func (c *AssignmentController) GetMyAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.SubmissionService.FindAttempt(ctx.Request.Context(), ctx.Param("assignmentId"), user.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 作业成绩单
// @Description 尝试的展示聚合：百分比、配色分级、状态与批改标签
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{assignmentId}/review [get]
func (c *AssignmentController) GetReview(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.SubmissionService.FindAttempt(ctx.Request.Context(), ctx.Param("assignmentId"), user.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, service.BuildAttemptReview(attempt))
}

// @Summary 待批改列表
// @Description 某课程下所有等待批改的尝试，按提交时间升序
// @Tags 批改
// @Produce json
// @Security BearerAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/grading/courses/{courseId}/pending [get]
func (c *AssignmentController) ListPending(ctx *gin.Context) {
	attempts, err := c.SubmissionService.ListPending(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"attempts": attempts, "total": len(attempts)})
}

// @Summary 查看单个尝试
// @Tags 批改
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/grading/attempts/{attemptId} [get]
func (c *AssignmentController) GetAttempt(ctx *gin.Context) {
	attempt, err := c.SubmissionService.GetAttempt(ctx.Request.Context(), ctx.Param("attemptId"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 批改作业
// @Description 打分并给出通过/未通过结论，仅允许批改 submitted 状态的尝试
// @Tags 批改
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "尝试ID"
// @Param grade body service.GradeRequest true "批改结果"
// @Success 200 {object} util.Response
// @Router /api/grading/attempts/{attemptId}/grade [post]
func (c *AssignmentController) Grade(ctx *gin.Context) {
	var req service.GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.SubmissionService.Grade(ctx.Request.Context(), ctx.Param("attemptId"), req.Score, req.Feedback, *req.Passed)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 我的已批改成绩（本地缓存）
// @Description 从本地缓存读取已批改的作业成绩，远端不可用时仍可查看
// @Tags 作业
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/assignments/graded [get]
func (c *AssignmentController) ListGraded(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	cached, err := c.AttemptRepo.ListByUser(user.Email)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"attempts": cached, "total": len(cached)})
}
