package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"estategate/internal/models"
	apperrors "estategate/pkg/errors"
	"estategate/pkg/logger"
	"estategate/pkg/pagination"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// DefaultMaxIssueAttempts 生成访客码的重试上限，36^6 的空间下实际不可能触达
const DefaultMaxIssueAttempts = 10000

// IssueVisitorCodeRequest 签发访客码请求
type IssueVisitorCodeRequest struct {
	VisitorName      string    `json:"visitor_name" validate:"required,max=255"`
	PhoneNumber      *string   `json:"phone_number" validate:"omitempty,max=20"`
	Destination      string    `json:"destination" validate:"required,max=255"`
	NumberOfVisitors int       `json:"number_of_visitors" validate:"required,min=1,max=10"`
	ExpiresAt        time.Time `json:"expires_at" validate:"required"`
	AdditionalNotes  *string   `json:"additional_notes" validate:"omitempty,max=1000"`
}

// VisitorCodeListQuery 列表查询参数
type VisitorCodeListQuery struct {
	Status   models.VisitorCodeStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// VisitorCodeService 访客码生命周期
type VisitorCodeService struct {
	store       VisitorCodeStore
	activity    ActivityRecorder
	publisher   VisitorEventPublisher
	clock       Clock
	generate    CodeGenerator
	maxAttempts int
	validate    *validator.Validate
	log         *logrus.Logger
}

// NewVisitorCodeService 创建访客码服务，activity 和 publisher 可以为 nil
func NewVisitorCodeService(store VisitorCodeStore, activity ActivityRecorder, publisher VisitorEventPublisher, clock Clock) *VisitorCodeService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &VisitorCodeService{
		store:       store,
		activity:    activity,
		publisher:   publisher,
		clock:       clock,
		generate:    GenerateVisitorCode,
		maxAttempts: DefaultMaxIssueAttempts,
		validate:    newRequestValidator(),
		log:         logger.GetLogger(),
	}
}

// SetCodeGenerator 替换访客码生成函数
func (s *VisitorCodeService) SetCodeGenerator(gen CodeGenerator) {
	s.generate = gen
}

// SetMaxIssueAttempts 设置生成访客码的重试上限
func (s *VisitorCodeService) SetMaxIssueAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *VisitorCodeService) validateRequest(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Validation("参数校验失败: %v", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.Validation("参数校验失败: %s", strings.Join(parts, "; "))
}

// staffScope 物业人员只能操作本小区的访客码
func staffScope(actor Actor) VisitorCodeScope {
	return VisitorCodeScope{EstateID: actor.EstateID}
}

func ownerScope(actor Actor) VisitorCodeScope {
	return VisitorCodeScope{OwnerID: actor.ID}
}

func requireStaff(actor Actor) error {
	if !actor.IsStaff() {
		return apperrors.Forbidden("仅物业人员可执行该操作")
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrVisitorCodeNotFound) {
		return apperrors.NotFound("访客码不存在")
	}
	return err
}

// ========== 签发 ==========

// Issue 住户签发访客码，状态为 pending
func (s *VisitorCodeService) Issue(ctx context.Context, actor Actor, req *IssueVisitorCodeRequest) (*models.VisitorCode, error) {
	if actor.Role != models.RoleResident {
		return nil, apperrors.Forbidden("仅住户可签发访客码")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !req.ExpiresAt.After(now) {
		return nil, apperrors.Validation("参数校验失败: expires_at 必须晚于当前时间")
	}

	vc := &models.VisitorCode{
		UserID:           actor.ID,
		EstateID:         actor.EstateID,
		VisitorName:      req.VisitorName,
		PhoneNumber:      req.PhoneNumber,
		Destination:      req.Destination,
		NumberOfVisitors: req.NumberOfVisitors,
		ExpiresAt:        req.ExpiresAt.UTC(),
		AdditionalNotes:  req.AdditionalNotes,
		Status:           models.VisitorCodeStatusPending,
	}
	if err := s.insertUnique(ctx, vc); err != nil {
		return nil, err
	}

	s.record(ctx, actor, vc, models.ActionVisitorCodeCreated,
		fmt.Sprintf("为访客 %s 签发访客码", vc.VisitorName),
		map[string]interface{}{
			"visitor_name":       vc.VisitorName,
			"code":               vc.Code,
			"number_of_visitors": vc.NumberOfVisitors,
			"expires_at":         vc.ExpiresAt.Format(time.RFC3339),
		})
	s.publish(ctx, EventVisitorCodeIssued, vc, actor.ID, now)
	return vc, nil
}

// insertUnique 预检查只减少冲突，唯一索引才是最终判定，冲突时重新生成
func (s *VisitorCodeService) insertUnique(ctx context.Context, vc *models.VisitorCode) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return fmt.Errorf("生成访客码失败: %w", err)
		}

		exists, err := s.store.CodeExists(ctx, code)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		vc.Code = code
		err = s.store.Insert(ctx, vc)
		if errors.Is(err, ErrCodeTaken) {
			s.log.WithField("attempt", attempt).Debug("访客码插入时发生冲突，重新生成")
			vc.ID = 0
			continue
		}
		return err
	}
	return fmt.Errorf("尝试 %d 次后仍未生成可用的访客码", s.maxAttempts)
}

// ========== 核验 ==========

// checkVerifiable 过期优先于其它冲突
func checkVerifiable(vc *models.VisitorCode, now time.Time) error {
	if vc.IsExpiredAt(now) {
		return apperrors.Expired("访客码已过期")
	}
	if vc.IsVerified() {
		return apperrors.Conflict("访客码已被核验")
	}
	if vc.Status.IsTerminal() {
		return apperrors.Conflict("访客码当前状态为 %s，无法核验", vc.Status)
	}
	return nil
}

// Verify 物业人员按ID核验访客码
func (s *VisitorCodeService) Verify(ctx context.Context, actor Actor, id uint) (*models.VisitorCode, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	vc, err := s.store.FindByID(ctx, id, staffScope(actor))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.verify(ctx, actor, vc, models.ActionVisitorCodeVerified)
}

// VerifyByCode 物业人员按访客码核验，输入不区分大小写
func (s *VisitorCodeService) VerifyByCode(ctx context.Context, actor Actor, rawCode string) (*models.VisitorCode, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	code, err := NormalizeVisitorCode(rawCode)
	if err != nil {
		return nil, err
	}
	vc, err := s.store.FindByCode(ctx, code, staffScope(actor))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.verify(ctx, actor, vc, models.ActionVisitorCodeVerifiedByCode)
}

// verify 只要求未核验且未过期，不要求 status 必须为 pending
func (s *VisitorCodeService) verify(ctx context.Context, actor Actor, vc *models.VisitorCode, action string) (*models.VisitorCode, error) {
	now := s.clock.Now()
	if err := checkVerifiable(vc, now); err != nil {
		return nil, err
	}

	guard := VisitorCodeGuard{
		Statuses:     models.OpenVisitorCodeStatuses,
		Unverified:   true,
		NotExpiredAt: &now,
	}
	updated, err := s.transition(ctx, vc.ID, staffScope(actor), guard, map[string]interface{}{
		"status":      string(models.VisitorCodeStatusActive),
		"verified_by": actor.ID,
		"verified_at": now,
		"time_in":     now,
	}, now, checkVerifiable)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, updated, action,
		fmt.Sprintf("核验访客 %s 的访客码", updated.VisitorName),
		map[string]interface{}{
			"visitor_name": updated.VisitorName,
			"code":         updated.Code,
			"verified_at":  now.Format(time.RFC3339),
		})
	s.publish(ctx, EventVisitorCodeVerified, updated, actor.ID, now)
	return updated, nil
}

// transition 执行条件更新，未命中时重新读取记录给出具体原因
func (s *VisitorCodeService) transition(ctx context.Context, id uint, scope VisitorCodeScope, guard VisitorCodeGuard,
	fields map[string]interface{}, now time.Time, check func(*models.VisitorCode, time.Time) error) (*models.VisitorCode, error) {

	ok, err := s.store.ConditionalUpdate(ctx, id, scope, guard, fields)
	if err != nil {
		return nil, err
	}
	current, err := s.store.FindByID(ctx, id, scope)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if ok {
		return current, nil
	}
	if err := check(current, now); err != nil {
		return nil, err
	}
	return nil, apperrors.Conflict("访客码状态已变更，请刷新后重试")
}

// ========== 取消 ==========

func checkCancellable(vc *models.VisitorCode, _ time.Time) error {
	if vc.IsVerified() {
		return apperrors.Conflict("访客码已被核验，无法取消")
	}
	if vc.Status.IsTerminal() {
		return apperrors.Conflict("访客码当前状态为 %s，无法取消", vc.Status)
	}
	return nil
}

// Cancel 住户取消自己签发且尚未核验的访客码
func (s *VisitorCodeService) Cancel(ctx context.Context, actor Actor, id uint) (*models.VisitorCode, error) {
	vc, err := s.store.FindByID(ctx, id, ownerScope(actor))
	if err != nil {
		return nil, notFoundOr(err)
	}
	now := s.clock.Now()
	if err := checkCancellable(vc, now); err != nil {
		return nil, err
	}

	guard := VisitorCodeGuard{
		Statuses:   models.OpenVisitorCodeStatuses,
		Unverified: true,
	}
	updated, err := s.transition(ctx, vc.ID, ownerScope(actor), guard, map[string]interface{}{
		"status": string(models.VisitorCodeStatusCancelled),
	}, now, checkCancellable)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, updated, models.ActionVisitorCodeCancelled,
		fmt.Sprintf("取消访客 %s 的访客码", updated.VisitorName),
		map[string]interface{}{
			"visitor_name": updated.VisitorName,
			"code":         updated.Code,
		})
	s.publish(ctx, EventVisitorCodeCancelled, updated, actor.ID, now)
	return updated, nil
}

// ========== 入场/离场 ==========

func requireStatus(status models.VisitorCodeStatus, op string) func(*models.VisitorCode, time.Time) error {
	return func(vc *models.VisitorCode, _ time.Time) error {
		if vc.Status != status {
			return apperrors.Conflict("访客码当前状态为 %s，%s要求状态为 %s", vc.Status, op, status)
		}
		return nil
	}
}

// SetTimeIn 物业人员手动登记入场，要求 status 为 pending
func (s *VisitorCodeService) SetTimeIn(ctx context.Context, actor Actor, id uint) (*models.VisitorCode, error) {
	return s.stampTime(ctx, actor, id, timeStampStep{
		from:    models.VisitorCodeStatusPending,
		to:      models.VisitorCodeStatusActive,
		column:  "time_in",
		op:      "登记入场",
		action:  models.ActionVisitorCodeTimeIn,
		event:   EventVisitorCodeTimeIn,
		summary: "登记访客 %s 入场",
	})
}

// SetTimeOut 物业人员登记离场，要求 status 为 active
func (s *VisitorCodeService) SetTimeOut(ctx context.Context, actor Actor, id uint) (*models.VisitorCode, error) {
	return s.stampTime(ctx, actor, id, timeStampStep{
		from:    models.VisitorCodeStatusActive,
		to:      models.VisitorCodeStatusComplete,
		column:  "time_out",
		op:      "登记离场",
		action:  models.ActionVisitorCodeTimeOut,
		event:   EventVisitorCodeTimeOut,
		summary: "登记访客 %s 离场",
	})
}

type timeStampStep struct {
	from, to models.VisitorCodeStatus
	column   string
	op       string
	action   string
	event    string
	summary  string
}

func (s *VisitorCodeService) stampTime(ctx context.Context, actor Actor, id uint, step timeStampStep) (*models.VisitorCode, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	vc, err := s.store.FindByID(ctx, id, staffScope(actor))
	if err != nil {
		return nil, notFoundOr(err)
	}
	now := s.clock.Now()
	check := requireStatus(step.from, step.op)
	if err := check(vc, now); err != nil {
		return nil, err
	}

	guard := VisitorCodeGuard{Statuses: []models.VisitorCodeStatus{step.from}}
	updated, err := s.transition(ctx, vc.ID, staffScope(actor), guard, map[string]interface{}{
		"status":    string(step.to),
		step.column: now,
	}, now, check)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, updated, step.action,
		fmt.Sprintf(step.summary, updated.VisitorName),
		map[string]interface{}{
			"visitor_name": updated.VisitorName,
			"code":         updated.Code,
			step.column:    now.Format(time.RFC3339),
		})
	s.publish(ctx, step.event, updated, actor.ID, now)
	return updated, nil
}

// ========== 过期扫描 ==========

// SweepExpired 将到期的 pending/active 访客码置为 expired，可重复执行
// 每个被置为过期的访客码各写一条无操作人的审计记录并发布事件
func (s *VisitorCodeService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.store.BulkUpdateExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("批量过期访客码失败: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	for i := range expired {
		vc := &expired[i]
		if s.activity != nil {
			relatedID := vc.ID
			s.activity.Record(ctx, &models.Activity{
				EstateID:    vc.EstateID,
				Action:      models.ActionVisitorCodeExpired,
				Description: fmt.Sprintf("访客 %s 的访客码已过期", vc.VisitorName),
				RelatedType: models.RelatedTypeVisitorCode,
				RelatedID:   &relatedID,
				Metadata: map[string]interface{}{
					"code":       vc.Code,
					"owner_id":   vc.UserID,
					"expires_at": vc.ExpiresAt.Format(time.RFC3339),
				},
			})
		}
		s.publish(ctx, EventVisitorCodeExpired, vc, 0, now)
	}

	s.log.WithFields(logrus.Fields{
		"count": len(expired),
		"now":   now.Format(time.RFC3339),
	}).Info("访客码过期扫描完成")
	return int64(len(expired)), nil
}

// ========== 查询与删除 ==========

// Get 住户只能查看自己的访客码，物业人员可查看本小区的访客码
func (s *VisitorCodeService) Get(ctx context.Context, actor Actor, id uint) (*models.VisitorCode, error) {
	scope := ownerScope(actor)
	if actor.IsStaff() {
		scope = staffScope(actor)
	}
	vc, err := s.store.FindByID(ctx, id, scope)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return vc, nil
}

// ListMine 查询调用方签发的访客码
func (s *VisitorCodeService) ListMine(ctx context.Context, actor Actor, query VisitorCodeListQuery, page *pagination.PageParams) ([]models.VisitorCode, int64, error) {
	if err := checkListQuery(query); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, VisitorCodeFilter{
		VisitorCodeScope: ownerScope(actor),
		Status:           query.Status,
		FromDate:         query.FromDate,
		ToDate:           query.ToDate,
	}, pageOrDefault(page))
}

// ListForEstate 物业人员查询本小区访客码，附带签发人与核验人
func (s *VisitorCodeService) ListForEstate(ctx context.Context, actor Actor, query VisitorCodeListQuery, page *pagination.PageParams) ([]models.VisitorCode, int64, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	if err := checkListQuery(query); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, VisitorCodeFilter{
		VisitorCodeScope: staffScope(actor),
		Status:           query.Status,
		FromDate:         query.FromDate,
		ToDate:           query.ToDate,
		Preload:          true,
	}, pageOrDefault(page))
}

func checkListQuery(query VisitorCodeListQuery) error {
	if query.Status != "" && !query.Status.Valid() {
		return apperrors.Validation("无效的状态: %s", query.Status)
	}
	if query.FromDate != nil && query.ToDate != nil && query.ToDate.Before(*query.FromDate) {
		return apperrors.Validation("to_date 不能早于 from_date")
	}
	return nil
}

func pageOrDefault(page *pagination.PageParams) *pagination.PageParams {
	if page == nil {
		return pagination.Default()
	}
	return page
}

// Remove 软删除已结束的访客码，仅签发住户本人可删除
func (s *VisitorCodeService) Remove(ctx context.Context, actor Actor, id uint) error {
	scope := ownerScope(actor)
	vc, err := s.store.FindByID(ctx, id, scope)
	if err != nil {
		return notFoundOr(err)
	}
	if !vc.Status.IsTerminal() {
		return apperrors.Conflict("访客码当前状态为 %s，只能删除已结束的访客码", vc.Status)
	}

	guard := VisitorCodeGuard{Statuses: []models.VisitorCodeStatus{
		models.VisitorCodeStatusComplete,
		models.VisitorCodeStatusExpired,
		models.VisitorCodeStatusCancelled,
	}}
	ok, err := s.store.SoftDelete(ctx, vc.ID, scope, guard)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("访客码不存在")
	}

	s.record(ctx, actor, vc, models.ActionVisitorCodeDeleted,
		fmt.Sprintf("删除访客 %s 的访客码", vc.VisitorName),
		map[string]interface{}{"code": vc.Code, "status": string(vc.Status)})
	return nil
}

// ========== 审计与通知 ==========

func (s *VisitorCodeService) record(ctx context.Context, actor Actor, vc *models.VisitorCode, action, description string, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	userID := actor.ID
	relatedID := vc.ID
	s.activity.Record(ctx, &models.Activity{
		EstateID:    vc.EstateID,
		UserID:      &userID,
		Action:      action,
		Description: description,
		RelatedType: models.RelatedTypeVisitorCode,
		RelatedID:   &relatedID,
		Metadata:    metadata,
	})
}

func (s *VisitorCodeService) publish(ctx context.Context, eventType string, vc *models.VisitorCode, actorID uint, at time.Time) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, NewVisitorEvent(eventType, vc, actorID, at))
}
