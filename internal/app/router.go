package app

import (
	"edulink_backend/docs"
	"edulink_backend/internal/config"
	"edulink_backend/internal/middleware"
	"edulink_backend/internal/model"
	"edulink_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(a.Redis))
	{
		a.registerChatRoutes(authGroup, c)
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerChatRoutes(rg *gin.RouterGroup, c *controllers) {
	chat := rg.Group("/chat")
	{
		chat.GET("/rooms/:roomId/ws", c.chat.HandleWS)
		chat.GET("/rooms/:roomId/messages", c.chat.GetMessages)
		chat.POST("/rooms/:roomId/messages", c.chat.SendMessage)
		chat.POST("/rooms/:roomId/messages/:messageId/hide", c.chat.HideForMe)
		chat.DELETE("/rooms/:roomId/messages/:messageId", c.chat.DeleteForEveryone)
		chat.GET("/online/:email", c.chat.IsOnline)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	// 作业
	rg.POST("/assignments/submit", c.assignment.Submit)
	rg.GET("/assignments/graded", c.assignment.ListGraded)
	rg.GET("/assignments/:assignmentId/state", c.assignment.GetState)
	rg.GET("/assignments/:assignmentId/attempt", c.assignment.GetMyAttempt)
	rg.GET("/assignments/:assignmentId/review", c.assignment.GetReview)

	// 测验
	rg.POST("/quizzes/submit", c.quiz.Submit)
	rg.GET("/quizzes/:quizId/result", c.quiz.GetResult)
	rg.GET("/quizzes/:quizId/review", c.quiz.GetReview)

	// 课程（本地缓存，离线可浏览）
	rg.GET("/courses", c.course.List)
	rg.GET("/courses/:id", c.course.Get)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		// 批改
		teacher.GET("/grading/courses/:courseId/pending", c.assignment.ListPending)
		teacher.GET("/grading/attempts/:attemptId", c.assignment.GetAttempt)
		teacher.POST("/grading/attempts/:attemptId/grade", c.assignment.Grade)

		// 课程维护
		teacher.POST("/courses", c.course.Create)
		teacher.DELETE("/courses/:id", c.course.Delete)
		teacher.POST("/courses/:id/topics", c.course.AddTopic)
		teacher.DELETE("/courses/:id/topics/:topicId", c.course.DeleteTopic)
	}
}
