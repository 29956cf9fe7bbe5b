package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"estategate/pkg/logger"

	"github.com/robfig/cron/v3"
)

// ExpirySweeper 过期扫描的执行方
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryScheduler 按cron表达式定期触发访客码过期扫描
type ExpiryScheduler struct {
	sweeper  ExpirySweeper
	clock    Clock
	cronExpr string
	timeout  time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID
	mu       sync.Mutex
	running  bool
}

// NewExpiryScheduler 创建过期扫描调度器
func NewExpiryScheduler(sweeper ExpirySweeper, clock Clock, cronExpr string) *ExpiryScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ExpiryScheduler{
		sweeper:  sweeper,
		clock:    clock,
		cronExpr: cronExpr,
		timeout:  30 * time.Second,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start 启动调度器
func (s *ExpiryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	entryID, err := s.cron.AddFunc(s.cronExpr, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("无效的cron表达式 %s: %v", s.cronExpr, err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	logger.GetLogger().Infof("访客码过期扫描调度器启动成功，cron: %s", s.cronExpr)
	return nil
}

// Stop 停止调度器，等待正在执行的扫描结束
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	logger.GetLogger().Info("停止访客码过期扫描调度器")
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.running = false
}

// IsRunning 调度器是否在运行
func (s *ExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun 下一次扫描时间，未启动时返回零值
func (s *ExpiryScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// RunOnce 立即执行一次扫描
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.sweeper.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		logger.GetLogger().Errorf("访客码过期扫描失败: %v", err)
		return 0, err
	}
	return count, nil
}
