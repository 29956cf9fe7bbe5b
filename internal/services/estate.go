package services

import (
	"fmt"
	"unicode/utf8"

	"estategate/internal/models"

	"gorm.io/gorm"
)

type EstateService struct {
	db *gorm.DB
}

func NewEstateService(db *gorm.DB) *EstateService {
	return &EstateService{db: db}
}

// Create 创建小区
func (s *EstateService) Create(name, code, address string) (*models.Estate, error) {
	if err := s.ValidateCreateParams(name, code); err != nil {
		return nil, err
	}

	var count int64
	s.db.Model(&models.Estate{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("小区编码已存在")
	}

	estate := &models.Estate{
		Name:    name,
		Code:    code,
		Address: address,
		Status:  models.EstateStatusActive,
	}
	if err := s.db.Create(estate).Error; err != nil {
		return nil, err
	}
	return estate, nil
}

// GetByID 根据ID获取小区
func (s *EstateService) GetByID(id uint) (*models.Estate, error) {
	var estate models.Estate
	err := s.db.First(&estate, id).Error
	return &estate, err
}

// GetByCode 根据编码获取小区
func (s *EstateService) GetByCode(code string) (*models.Estate, error) {
	var estate models.Estate
	err := s.db.Where("code = ?", code).First(&estate).Error
	return &estate, err
}

// ValidateCreateParams 验证创建参数
func (s *EstateService) ValidateCreateParams(name, code string) error {
	nameLen := utf8.RuneCountInString(name)
	if nameLen < 2 || nameLen > 100 {
		return fmt.Errorf("小区名称长度必须在2-100个字符之间")
	}
	if len(code) < 2 || len(code) > 50 {
		return fmt.Errorf("小区编码长度必须在2-50个字符之间")
	}
	return nil
}
