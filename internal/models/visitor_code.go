package models

import (
	"time"
)

// VisitorCodeStatus 访客码状态
type VisitorCodeStatus string

// 访客码状态常量
const (
	VisitorCodeStatusPending   VisitorCodeStatus = "pending"
	VisitorCodeStatusActive    VisitorCodeStatus = "active"
	VisitorCodeStatusComplete  VisitorCodeStatus = "complete"
	VisitorCodeStatusExpired   VisitorCodeStatus = "expired"
	VisitorCodeStatusCancelled VisitorCodeStatus = "cancelled"
)

// OpenVisitorCodeStatuses 仍可发生状态迁移的状态
var OpenVisitorCodeStatuses = []VisitorCodeStatus{
	VisitorCodeStatusPending,
	VisitorCodeStatusActive,
}

// IsTerminal complete/expired/cancelled 之后不再允许任何迁移
func (s VisitorCodeStatus) IsTerminal() bool {
	return s == VisitorCodeStatusComplete || s == VisitorCodeStatusExpired || s == VisitorCodeStatusCancelled
}

// Valid 是否为已知状态
func (s VisitorCodeStatus) Valid() bool {
	switch s {
	case VisitorCodeStatusPending, VisitorCodeStatusActive, VisitorCodeStatusComplete,
		VisitorCodeStatusExpired, VisitorCodeStatusCancelled:
		return true
	}
	return false
}

// VisitorCode 住户为访客签发的一次性通行码
type VisitorCode struct {
	SoftDeleteModel
	UserID           uint              `json:"user_id" gorm:"not null;index"`
	EstateID         uint              `json:"estate_id" gorm:"not null;index"`
	VisitorName      string            `json:"visitor_name" gorm:"size:255;not null"`
	PhoneNumber      *string           `json:"phone_number" gorm:"size:20"`
	Destination      string            `json:"destination" gorm:"size:255;not null"`
	NumberOfVisitors int               `json:"number_of_visitors" gorm:"not null;default:1"`
	Code             string            `json:"code" gorm:"size:10;not null;uniqueIndex:idx_visitor_codes_code,where:deleted_at IS NULL"`
	ExpiresAt        time.Time         `json:"expires_at" gorm:"not null;index"`
	AdditionalNotes  *string           `json:"additional_notes" gorm:"type:text"`
	Status           VisitorCodeStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	VerifiedBy       *uint             `json:"verified_by"`
	VerifiedAt       *time.Time        `json:"verified_at"`
	TimeIn           *time.Time        `json:"time_in"`
	TimeOut          *time.Time        `json:"time_out"`

	// 关联
	User     *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Verifier *User `json:"verifier,omitempty" gorm:"foreignKey:VerifiedBy"`
}

// TableName 指定表名
func (VisitorCode) TableName() string {
	return "visitor_codes"
}

// IsExpiredAt expires_at <= now 即视为过期
func (v *VisitorCode) IsExpiredAt(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

// IsVerified 是否已被物业人员核验
func (v *VisitorCode) IsVerified() bool {
	return v.VerifiedAt != nil
}
