package models

// Estate 小区（租户）模型，用户、访客码都归属于某个小区
type Estate struct {
	BaseModel
	Name    string `json:"name" gorm:"not null;size:100"`
	Code    string `json:"code" gorm:"unique;not null;size:50;index"`
	Address string `json:"address" gorm:"size:255"`
	Status  string `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (e *Estate) TableName() string {
	return "estates"
}

// 小区状态常量
const (
	EstateStatusActive   = "active"
	EstateStatusInactive = "inactive"
)
