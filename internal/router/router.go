package router

import (
	"estategate/internal/handlers"
	"estategate/internal/middleware"
	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/config"
	"estategate/pkg/jwt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies 路由所需的服务实例，由 main 组装
type Dependencies struct {
	DB           *gorm.DB
	Config       *config.Config
	JWTManager   *jwt.JWTManager
	Users        *services.UserService
	Estates      *services.EstateService
	VisitorCodes *services.VisitorCodeService
	Activities   *services.ActivityService
	GateFeed     *services.GateFeedHub
	EventQueue   handlers.EventQueue
	Scheduler    *services.ExpiryScheduler
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config.CORS))

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	auth := middleware.NewAuthMiddleware(deps.Users, deps.JWTManager)

	api := router.Group("/api/v1")
	{
		// 健康检查接口
		systemHandler := handlers.NewSystemHandler(deps.DB, deps.EventQueue, deps.Scheduler)
		api.GET("/health", systemHandler.Health)
		api.GET("/ping", systemHandler.Ping)

		// 认证
		authHandler := handlers.NewAuthHandler(deps.Users, deps.Estates, deps.Activities, deps.JWTManager)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 访客码
		visitorCodeHandler := handlers.NewVisitorCodeHandler(deps.VisitorCodes)
		visitorCodes := api.Group("/visitor-codes", auth.RequireLogin())
		{
			visitorCodes.POST("", auth.RequireRole(models.RoleResident), visitorCodeHandler.Create)
			visitorCodes.GET("", visitorCodeHandler.List)
			visitorCodes.GET("/:id", visitorCodeHandler.GetByID)
			visitorCodes.DELETE("/:id", visitorCodeHandler.Delete)
			visitorCodes.POST("/:id/cancel", visitorCodeHandler.Cancel)

			// 物业人员操作
			visitorCodes.POST("/verify-by-code", auth.RequireStaff(), visitorCodeHandler.VerifyByCode)
			visitorCodes.POST("/:id/verify", auth.RequireStaff(), visitorCodeHandler.Verify)
			visitorCodes.POST("/:id/time-in", auth.RequireStaff(), visitorCodeHandler.TimeIn)
			visitorCodes.POST("/:id/time-out", auth.RequireStaff(), visitorCodeHandler.TimeOut)
		}

		// 审计日志
		activityHandler := handlers.NewActivityHandler(deps.Activities)
		api.GET("/activities", auth.RequireLogin(), activityHandler.List)

		// 管理端
		admin := api.Group("/admin", auth.RequireLogin(), auth.RequireStaff())
		{
			admin.GET("/visitor-codes", visitorCodeHandler.AdminList)
			admin.GET("/activities", activityHandler.AdminList)
		}

		// 门岗实时事件，浏览器WebSocket无法设置请求头，token 通过查询参数传递
		gateFeedHandler := handlers.NewGateFeedHandler(deps.GateFeed, deps.Config.CORS.AllowOrigins)
		api.GET("/ws/gate-feed", auth.RequireLogin(), auth.RequireStaff(), gateFeedHandler.Stream)
	}

}
