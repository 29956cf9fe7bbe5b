package services

import (
	"context"
	"errors"
	"time"

	"estategate/internal/models"
	"estategate/pkg/pagination"

	"gorm.io/gorm"
)

var (
	// ErrVisitorCodeNotFound 记录不存在或不在调用方可见范围内
	ErrVisitorCodeNotFound = errors.New("visitor code not found")
	// ErrCodeTaken 插入时触发唯一约束
	ErrCodeTaken = errors.New("visitor code already taken")
)

// VisitorCodeScope 限定可见范围，零值字段表示不限制
type VisitorCodeScope struct {
	OwnerID  uint
	EstateID uint
}

// VisitorCodeGuard 状态迁移的前置条件，与更新在同一条SQL中判断
type VisitorCodeGuard struct {
	Statuses     []models.VisitorCodeStatus
	Unverified   bool
	NotExpiredAt *time.Time
}

// VisitorCodeFilter 列表查询条件
type VisitorCodeFilter struct {
	VisitorCodeScope
	Status   models.VisitorCodeStatus
	FromDate *time.Time
	ToDate   *time.Time
	Preload  bool
}

// VisitorCodeStore 访客码持久化
type VisitorCodeStore interface {
	FindByID(ctx context.Context, id uint, scope VisitorCodeScope) (*models.VisitorCode, error)
	FindByCode(ctx context.Context, code string, scope VisitorCodeScope) (*models.VisitorCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, code *models.VisitorCode) error
	ConditionalUpdate(ctx context.Context, id uint, scope VisitorCodeScope, guard VisitorCodeGuard, fields map[string]interface{}) (bool, error)
	BulkUpdateExpired(ctx context.Context, now time.Time) ([]models.VisitorCode, error)
	List(ctx context.Context, filter VisitorCodeFilter, page *pagination.PageParams) ([]models.VisitorCode, int64, error)
	SoftDelete(ctx context.Context, id uint, scope VisitorCodeScope, guard VisitorCodeGuard) (bool, error)
}

// GormVisitorCodeStore 基于gorm的实现，已软删除的记录自动排除
type GormVisitorCodeStore struct {
	db *gorm.DB
}

// NewGormVisitorCodeStore 创建访客码存储
func NewGormVisitorCodeStore(db *gorm.DB) *GormVisitorCodeStore {
	return &GormVisitorCodeStore{db: db}
}

func (s *GormVisitorCodeStore) scoped(ctx context.Context, scope VisitorCodeScope) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.VisitorCode{})
	if scope.OwnerID != 0 {
		query = query.Where("user_id = ?", scope.OwnerID)
	}
	if scope.EstateID != 0 {
		query = query.Where("estate_id = ?", scope.EstateID)
	}
	return query
}

func applyGuard(query *gorm.DB, guard VisitorCodeGuard) *gorm.DB {
	if len(guard.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(guard.Statuses))
	}
	if guard.Unverified {
		query = query.Where("verified_at IS NULL")
	}
	if guard.NotExpiredAt != nil {
		query = query.Where("expires_at > ?", *guard.NotExpiredAt)
	}
	return query
}

func statusStrings(statuses []models.VisitorCodeStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (s *GormVisitorCodeStore) first(query *gorm.DB) (*models.VisitorCode, error) {
	var code models.VisitorCode
	err := query.First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVisitorCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// FindByID 根据ID查询
func (s *GormVisitorCodeStore) FindByID(ctx context.Context, id uint, scope VisitorCodeScope) (*models.VisitorCode, error) {
	return s.first(s.scoped(ctx, scope).Where("id = ?", id))
}

// FindByCode 根据访客码查询，code 需已规范化
func (s *GormVisitorCodeStore) FindByCode(ctx context.Context, code string, scope VisitorCodeScope) (*models.VisitorCode, error) {
	return s.first(s.scoped(ctx, scope).Where("code = ?", code))
}

// CodeExists 检查未删除记录中是否已有该访客码
func (s *GormVisitorCodeStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.VisitorCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert 插入新记录，唯一索引冲突返回 ErrCodeTaken
func (s *GormVisitorCodeStore) Insert(ctx context.Context, code *models.VisitorCode) error {
	err := s.db.WithContext(ctx).Create(code).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeTaken
	}
	return err
}

// ConditionalUpdate 仅当记录满足 guard 时更新，返回是否命中
func (s *GormVisitorCodeStore) ConditionalUpdate(ctx context.Context, id uint, scope VisitorCodeScope, guard VisitorCodeGuard, fields map[string]interface{}) (bool, error) {
	result := applyGuard(s.scoped(ctx, scope).Where("id = ?", id), guard).Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BulkUpdateExpired 将已到期的 pending/active 记录标记为 expired，返回本次实际变更的记录
// 逐条带条件更新，与并发的核验或取消竞争时只统计自己命中的行
func (s *GormVisitorCodeStore) BulkUpdateExpired(ctx context.Context, now time.Time) ([]models.VisitorCode, error) {
	open := statusStrings(models.OpenVisitorCodeStatuses)
	var expired []models.VisitorCode

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.VisitorCode
		if err := tx.Select("id", "user_id", "estate_id", "code", "visitor_name", "destination", "expires_at").
			Where("status IN ?", open).
			Where("expires_at <= ?", now).
			Order("id").
			Find(&due).Error; err != nil {
			return err
		}

		for _, vc := range due {
			result := tx.Model(&models.VisitorCode{}).
				Where("id = ?", vc.ID).
				Where("status IN ?", open).
				Where("expires_at <= ?", now).
				Update("status", string(models.VisitorCodeStatusExpired))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				vc.Status = models.VisitorCodeStatusExpired
				expired = append(expired, vc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *GormVisitorCodeStore) listQuery(ctx context.Context, filter VisitorCodeFilter) *gorm.DB {
	query := s.scoped(ctx, filter.VisitorCodeScope)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at < ?", *filter.ToDate)
	}
	return query
}

// List 分页查询，按创建时间倒序
func (s *GormVisitorCodeStore) List(ctx context.Context, filter VisitorCodeFilter, page *pagination.PageParams) ([]models.VisitorCode, int64, error) {
	var total int64
	if err := s.listQuery(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := s.listQuery(ctx, filter)
	if filter.Preload {
		query = query.Preload("User").Preload("Verifier")
	}

	var codes []models.VisitorCode
	err := query.Order("created_at DESC").Order("id DESC").
		Scopes(page.Scope()).
		Find(&codes).Error
	if err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// SoftDelete 软删除满足 guard 的记录
func (s *GormVisitorCodeStore) SoftDelete(ctx context.Context, id uint, scope VisitorCodeScope, guard VisitorCodeGuard) (bool, error) {
	result := applyGuard(s.scoped(ctx, scope).Where("id = ?", id), guard).Delete(&models.VisitorCode{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
