package main

import (
	"errors"
	"fmt"

	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/config"
	"estategate/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData(db *gorm.DB, cfg config.SeedConfig) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	// 1. 创建默认小区
	estate, err := createDefaultEstate(db, cfg)
	if err != nil {
		return fmt.Errorf("创建默认小区失败: %v", err)
	}

	// 2. 创建默认账号：管理员、门岗维护员、示例住户
	unit := "A-101"
	accounts := []services.CreateUserParams{
		{Username: "admin", Email: "admin@estategate.local", Name: "系统管理员", Role: models.RoleAdmin},
		{Username: "gate", Email: "gate@estategate.local", Name: "门岗值班员", Role: models.RoleMaintainer},
		{Username: "resident", Email: "resident@estategate.local", Name: "示例住户", Role: models.RoleResident, ApartmentUnit: &unit},
	}
	users := services.NewUserService(db)
	for _, params := range accounts {
		params.EstateID = estate.ID
		params.Password = cfg.AdminPassword
		if err := ensureUser(users, params); err != nil {
			return fmt.Errorf("创建默认账号 %s 失败: %v", params.Username, err)
		}
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultEstate 创建默认小区
func createDefaultEstate(db *gorm.DB, cfg config.SeedConfig) (*models.Estate, error) {
	var estate models.Estate
	err := db.Where("code = ?", cfg.EstateCode).First(&estate).Error
	if err == nil {
		logger.GetLogger().Info("默认小区已存在，跳过创建")
		return &estate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	estate = models.Estate{
		Name:   cfg.EstateName,
		Code:   cfg.EstateCode,
		Status: models.EstateStatusActive,
	}
	if err := db.Create(&estate).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().Info("默认小区创建成功")
	return &estate, nil
}

// ensureUser 用户名已存在时跳过
func ensureUser(users *services.UserService, params services.CreateUserParams) error {
	if _, err := users.GetByUsername(params.Username); err == nil {
		logger.GetLogger().Infof("默认账号 %s 已存在，跳过创建", params.Username)
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if _, err := users.Create(params); err != nil {
		return err
	}
	logger.GetLogger().Warnf("默认账号创建成功，用户名: %s，请尽快修改默认密码", params.Username)
	return nil
}
