package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity 操作审计记录，只写不改
type Activity struct {
	ID          uint              `json:"id" gorm:"primarykey"`
	EstateID    uint              `json:"estate_id" gorm:"not null;index"`
	UserID      *uint             `json:"user_id" gorm:"index"` // 过期扫描等系统动作为空
	Action      string            `json:"action" gorm:"size:64;not null;index"`
	Description string            `json:"description" gorm:"size:500"`
	RelatedType string            `json:"related_type" gorm:"size:64"`
	RelatedID   *uint             `json:"related_id"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
}

// TableName 指定表名
func (Activity) TableName() string {
	return "activities"
}

// 审计动作常量
const (
	ActionVisitorCodeCreated        = "visitor_code_created"
	ActionVisitorCodeVerified       = "visitor_code_verified"
	ActionVisitorCodeVerifiedByCode = "visitor_code_verified_by_code"
	ActionVisitorCodeCancelled      = "visitor_code_cancelled"
	ActionVisitorCodeTimeIn         = "visitor_code_time_in"
	ActionVisitorCodeTimeOut        = "visitor_code_time_out"
	ActionVisitorCodeDeleted        = "visitor_code_deleted"
	ActionVisitorCodeExpired        = "visitor_code_expired"
	ActionUserLogin                 = "user_login"
)

// RelatedTypeVisitorCode 审计记录关联对象类型
const RelatedTypeVisitorCode = "visitor_code"
