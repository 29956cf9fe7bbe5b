package middleware

import (
	"strings"

	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/jwt"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// AuthMiddleware 权限中间件
type AuthMiddleware struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware(userService *services.UserService, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// BearerToken 从Authorization头提取token，WebSocket连接可通过 token 查询参数传递
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", false
		}
		return authHeader[7:], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// RequireLogin 校验token并将调用方身份写入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 角色以数据库为准，token签发后角色可能已变更
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}

		if !m.userService.IsActive(user) {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		// user_id 供请求日志使用
		c.Set("user_id", user.ID)
		c.Set(actorKey, services.Actor{
			ID:       user.ID,
			EstateID: user.EstateID,
			Role:     user.Role,
		})

		c.Next()
	}
}

// RequireStaff 要求物业人员（管理员或维护员）
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !actor.IsStaff() {
			response.Forbidden(c, "仅物业人员可访问")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireRole 要求指定角色之一
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	if len(roles) == 0 {
		panic("middleware: RequireRole needs at least one role")
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "权限不足：需要 "+strings.Join(names, "/")+" 角色")
		c.Abort()
	}
}

// GetActor 取出 RequireLogin 写入的调用方身份
func GetActor(c *gin.Context) (services.Actor, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return services.Actor{}, false
	}
	actor, ok := value.(services.Actor)
	return actor, ok
}
