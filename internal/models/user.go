package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole 用户角色
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleMaintainer UserRole = "maintainer"
	RoleResident   UserRole = "resident"
	RoleInstaller  UserRole = "installer"
	RoleVendor     UserRole = "vendor"
	RoleUser       UserRole = "user"
)

// IsStaff 物业人员（管理员或维护员）可以核验访客、登记进出
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleMaintainer
}

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleMaintainer, RoleResident, RoleInstaller, RoleVendor, RoleUser:
		return true
	}
	return false
}

// User 用户模型
type User struct {
	BaseModel
	EstateID      uint       `json:"estate_id" gorm:"not null;index"`
	Username      string     `json:"username" gorm:"unique;not null;size:50;index"`
	Email         string     `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash  string     `json:"-" gorm:"not null;size:255"`
	Name          string     `json:"name" gorm:"not null;size:100"`
	Phone         *string    `json:"phone" gorm:"size:20"`
	ApartmentUnit *string    `json:"apartment_unit" gorm:"size:50"`
	Role          UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Status        string     `json:"status" gorm:"default:'active';size:20"`
	LastLoginAt   *time.Time `json:"last_login_at"`

	Estate *Estate `json:"estate,omitempty" gorm:"foreignKey:EstateID"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
