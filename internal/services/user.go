package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"estategate/internal/models"

	"gorm.io/gorm"
)

// ErrInvalidCredentials 用户名或密码错误
var ErrInvalidCredentials = errors.New("用户名或密码错误")

// ErrUserDisabled 用户已被禁用
var ErrUserDisabled = errors.New("用户已被禁用")

// ErrEstateInactive 用户所属小区已停用
var ErrEstateInactive = errors.New("所属小区已停用")

type UserService struct {
	db *gorm.DB
}

// CreateUserParams 创建用户参数
type CreateUserParams struct {
	EstateID      uint
	Username      string
	Email         string
	Password      string
	Name          string
	Phone         *string
	ApartmentUnit *string
	Role          models.UserRole
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// ========== 基础方法 ==========

// Create 创建用户
func (s *UserService) Create(params CreateUserParams) (*models.User, error) {
	if err := s.ValidateCreateParams(params.Username, params.Email, params.Password, params.Name); err != nil {
		return nil, err
	}
	if !params.Role.Valid() {
		return nil, fmt.Errorf("无效的角色: %s", params.Role)
	}

	// 检查小区是否存在
	var estateCount int64
	s.db.Model(&models.Estate{}).Where("id = ?", params.EstateID).Count(&estateCount)
	if estateCount == 0 {
		return nil, fmt.Errorf("小区不存在")
	}

	// 检查用户名是否重复
	var usernameCount int64
	s.db.Model(&models.User{}).Where("username = ?", params.Username).Count(&usernameCount)
	if usernameCount > 0 {
		return nil, fmt.Errorf("用户名已存在")
	}

	// 检查邮箱是否重复
	var emailCount int64
	s.db.Model(&models.User{}).Where("email = ?", params.Email).Count(&emailCount)
	if emailCount > 0 {
		return nil, fmt.Errorf("邮箱已存在")
	}

	user := &models.User{
		EstateID:      params.EstateID,
		Username:      params.Username,
		Email:         params.Email,
		Name:          params.Name,
		Phone:         params.Phone,
		ApartmentUnit: params.ApartmentUnit,
		Role:          params.Role,
		Status:        models.UserStatusActive,
	}
	if err := user.SetPassword(params.Password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	return &user, err
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	return &user, err
}

// Authenticate 校验用户名密码，成功后更新最后登录时间
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.IsActive(user) {
		return nil, ErrUserDisabled
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	var estate models.Estate
	if err := s.db.Select("id", "status").First(&estate, user.EstateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEstateInactive
		}
		return nil, err
	}
	if estate.Status != models.EstateStatusActive {
		return nil, ErrEstateInactive
	}

	// 最后登录时间只用于展示，失败不影响登录
	_ = s.UpdateLastLogin(user.ID)
	return user, nil
}

// UpdateLastLogin 更新最后登录时间
func (s *UserService) UpdateLastLogin(id uint) error {
	now := time.Now().UTC()
	return s.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error
}

// IsActive 检查用户是否处于可用状态
func (s *UserService) IsActive(user *models.User) bool {
	return user.Status == models.UserStatusActive
}

// ========== 验证方法 ==========

// ValidateUsername 验证用户名
func (s *UserService) ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	for _, r := range username {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// ValidateEmail 验证邮箱
func (s *UserService) ValidateEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".") && len(email) >= 5 && len(email) <= 100
}

// ValidatePassword 验证密码
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("密码长度不能少于6位")
	}
	if len(password) > 50 {
		return fmt.Errorf("密码长度不能超过50位")
	}
	return nil
}

// ValidateName 姓名按字符数计算
func (s *UserService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 50
}

// ValidateCreateParams 验证创建用户的参数
func (s *UserService) ValidateCreateParams(username, email, password, name string) error {
	if !s.ValidateUsername(username) {
		return fmt.Errorf("用户名长度必须在3-50个字符之间，且只能包含字母、数字和下划线")
	}
	if !s.ValidateEmail(email) {
		return fmt.Errorf("邮箱格式不正确")
	}
	if err := s.ValidatePassword(password); err != nil {
		return err
	}
	if !s.ValidateName(name) {
		return fmt.Errorf("姓名长度必须在2-50个字符之间")
	}
	return nil
}
