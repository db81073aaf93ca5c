package app

import (
	"edupath_backend/docs"
	"edupath_backend/internal/config"
	"edupath_backend/internal/middleware"
	"edupath_backend/internal/model"
	"edupath_backend/pkg/monitoring"
	"edupath_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	perUser := a.newLimiter("user", cfg.RateLimit.UserMaxRequests, cfg.RateLimit.UserWindowMinutes, security.UserKey).Middleware()
	{
		// 学生接口
		registerStudentRoutes(authGroup, c, perUser)

		// 教师相关接口
		registerTeacherRoutes(authGroup, c, perUser)

		// 管理员相关接口
		registerAdminRoutes(authGroup, c)
	}
}

func registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func registerStudentRoutes(api *gin.RouterGroup, c *controllers, perUser gin.HandlerFunc) {
	attempts := api.Group("", perUser)
	{
		attempts.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)
		attempts.GET("/attempts/:id", c.attempt.GetAttempt)
		attempts.PUT("/attempts/:id/answers/:questionId", c.attempt.SubmitAnswer)
		attempts.POST("/attempts/:id/evaluate", c.attempt.EvaluateAnswers)
		attempts.POST("/attempts/:id/complete", c.attempt.CompleteAttempt)
	}

	api.GET("/wallet", c.reward.GetWallet)
	api.GET("/badges", c.reward.GetBadges)
	api.GET("/pathways/:id/progress", c.pathway.GetProgress)
	api.GET("/notifications", c.notification.GetNotifications)
}

func registerTeacherRoutes(api *gin.RouterGroup, c *controllers, perUser gin.HandlerFunc) {
	teacher := api.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher), perUser)
	{
		teacher.GET("/grading/attempts", c.grading.ListPending)
		teacher.POST("/grading/attempts/:id", c.grading.GradeAttempt)
	}
}

func registerAdminRoutes(api *gin.RouterGroup, c *controllers) {
	admin := api.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/rewards/attempts/:id/retry/:step", c.reward.RetryStep)
		admin.POST("/wallets/reconcile", c.reward.Reconcile)
	}
}
