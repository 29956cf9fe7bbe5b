package services

import "estategate/internal/models"

// Actor 发起操作的调用方身份，由认证中间件解析后显式传入服务层
type Actor struct {
	ID       uint
	EstateID uint
	Role     models.UserRole
}

// IsStaff 是否为物业人员
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}
