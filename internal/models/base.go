package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SoftDeleteModel 软删除基础模型，删除后保留记录但不参与常规查询
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
