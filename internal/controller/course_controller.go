package controller

import (
	"errors"
	"strconv"

	"edulink_backend/internal/model"
	"edulink_backend/internal/repository"
	"edulink_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CourseController struct {
	CourseRepo *repository.CourseRepository
}

func NewCourseController(courseRepo *repository.CourseRepository) *CourseController {
	return &CourseController{CourseRepo: courseRepo}
}

// @Summary 课程列表
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/courses [get]
func (c *CourseController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	courses, total, err := c.CourseRepo.List(limit, (page-1)*limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  courses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 课程详情
// @Description 课程及其主题列表，主题按排序字段升序
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	course, err := c.CourseRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary 创建课程
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course body model.Course true "课程内容"
// @Success 201 {object} util.Response
// @Router /api/courses [post]
func (c *CourseController) Create(ctx *gin.Context) {
	var course model.Course
	if err := ctx.ShouldBindJSON(&course); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if course.Title == "" {
		util.BadRequest(ctx, "title is required")
		return
	}

	if err := c.CourseRepo.Create(&course); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 删除课程
// @Description 连同课程下的主题一起删除
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [delete]
func (c *CourseController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	if err := c.CourseRepo.Delete(uint(id)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 添加主题
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param topic body model.Topic true "主题内容"
// @Success 201 {object} util.Response
// @Router /api/courses/{id}/topics [post]
func (c *CourseController) AddTopic(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	var topic model.Topic
	if err := ctx.ShouldBindJSON(&topic); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	topic.CourseID = uint(id)

	if err := c.CourseRepo.AddTopic(&topic); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, topic)
}

// @Summary 删除主题
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param topicId path int true "主题ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/topics/{topicId} [delete]
func (c *CourseController) DeleteTopic(ctx *gin.Context) {
	topicID, err := strconv.ParseUint(ctx.Param("topicId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid topic id")
		return
	}

	if err := c.CourseRepo.DeleteTopic(uint(topicID)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
