package handlers

import (
	"errors"
	"time"

	"estategate/internal/middleware"
	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/jwt"
	"estategate/pkg/logger"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService   *services.UserService
	estateService *services.EstateService
	activity      services.ActivityRecorder
	jwtManager    *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, estateService *services.EstateService, activity services.ActivityRecorder, jwtManager *jwt.JWTManager) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		estateService: estateService,
		activity:      activity,
		jwtManager:    jwtManager,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
	User      UserInfo `json:"user"`
}

type UserInfo struct {
	ID            uint            `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	EstateID      uint            `json:"estate_id"`
	Role          models.UserRole `json:"role"`
	ApartmentUnit *string         `json:"apartment_unit,omitempty"`
}

func newUserInfo(user *models.User) UserInfo {
	return UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Name:          user.Name,
		EstateID:      user.EstateID,
		Role:          user.Role,
		ApartmentUnit: user.ApartmentUnit,
	}
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrUserDisabled) ||
			errors.Is(err, services.ErrEstateInactive) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.FromError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.EstateID, user.Username, string(user.Role))
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	if h.activity != nil {
		userID := user.ID
		h.activity.Record(c.Request.Context(), &models.Activity{
			EstateID:    user.EstateID,
			UserID:      &userID,
			Action:      models.ActionUserLogin,
			Description: "用户登录",
			Metadata:    map[string]interface{}{"client_ip": c.ClientIP()},
		})
	}

	logger.GetLogger().WithField("user_id", user.ID).Info("user logged in")

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		User:      newUserInfo(user),
	})
}

// Logout 用户登出，token在过期前仍然有效，由客户端删除
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenString, ok := middleware.BearerToken(c)
	if !ok {
		response.SuccessWithMessage(c, "登出成功", nil)
		return
	}

	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		response.SuccessWithMessage(c, "登出成功", nil)
		return
	}

	logger.GetLogger().WithField("user_id", claims.UserID).Info("user logged out")
	response.SuccessWithMessage(c, "登出成功", gin.H{
		"user_id":     claims.UserID,
		"username":    claims.Username,
		"logout_time": time.Now().UTC(),
	})
}

// RefreshToken 刷新Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	tokenString, ok := middleware.BearerToken(c)
	if !ok {
		response.Unauthorized(c, "缺少认证头")
		return
	}

	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		response.Unauthorized(c, "Token无效")
		return
	}

	user, err := h.userService.GetByID(claims.UserID)
	if err != nil {
		response.Unauthorized(c, "用户不存在")
		return
	}

	if !h.userService.IsActive(user) {
		response.Unauthorized(c, "用户已被禁用")
		return
	}

	// 使用数据库中的最新角色签发
	newToken, err := h.jwtManager.GenerateToken(user.ID, user.EstateID, user.Username, string(user.Role))
	if err != nil {
		response.ServerError(c, "生成新Token失败")
		return
	}

	response.Success(c, gin.H{
		"token":      newToken,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		"message":    "Token刷新成功",
	})
}

// Me 获取当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(actor.ID)
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}

	result := gin.H{
		"user":     newUserInfo(user),
		"is_staff": actor.IsStaff(),
	}

	estate, err := h.estateService.GetByID(user.EstateID)
	if err == nil {
		result["estate"] = gin.H{
			"id":   estate.ID,
			"name": estate.Name,
			"code": estate.Code,
		}
	}

	response.Success(c, result)
}
