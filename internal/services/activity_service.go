package services

import (
	"context"
	"time"

	"estategate/internal/models"
	"estategate/pkg/logger"
	"estategate/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActivityRecorder 审计日志写入端，写入失败不影响业务操作
type ActivityRecorder interface {
	Record(ctx context.Context, activity *models.Activity)
}

// ActivityFilter 审计日志查询条件
type ActivityFilter struct {
	EstateID uint
	UserID   uint
	Action   string
	FromDate *time.Time
	ToDate   *time.Time
}

// ActivityService 审计日志服务
type ActivityService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewActivityService 创建审计日志服务
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// Record 写入一条审计记录，错误只记录日志
func (s *ActivityService) Record(ctx context.Context, activity *models.Activity) {
	if err := s.db.WithContext(ctx).Create(activity).Error; err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":     activity.Action,
			"related_id": activity.RelatedID,
		}).Warn("写入审计日志失败")
	}
}

func (s *ActivityService) listQuery(ctx context.Context, filter ActivityFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Activity{})
	if filter.EstateID != 0 {
		query = query.Where("estate_id = ?", filter.EstateID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at < ?", *filter.ToDate)
	}
	return query
}

// List 分页查询审计记录，按时间倒序
func (s *ActivityService) List(ctx context.Context, filter ActivityFilter, page *pagination.PageParams) ([]models.Activity, int64, error) {
	var total int64
	if err := s.listQuery(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []models.Activity
	err := s.listQuery(ctx, filter).
		Order("created_at DESC").Order("id DESC").
		Scopes(page.Scope()).
		Find(&activities).Error
	if err != nil {
		return nil, 0, err
	}
	return activities, total, nil
}
