package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coin_tracker/config"
	"coin_tracker/logger"
	"coin_tracker/services"
)

// 任务类型
type TaskType int

const (
	TaskIngestion TaskType = iota
)

// 任务状态
type TaskStatus struct {
	LastRun     time.Time
	NextRun     time.Time
	IsRunning   bool
	Description string
}

// 任务调度器
type Scheduler struct {
	cfg      *config.Config
	analysis *services.AnalysisService
	tasks    map[TaskType]*TaskStatus
	mutex    sync.Mutex
}

// NewScheduler 创建新的调度器
func NewScheduler(cfg *config.Config, analysis *services.AnalysisService) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		analysis: analysis,
		tasks:    make(map[TaskType]*TaskStatus),
	}
}

// Start 启动调度器
func Start(cfg *config.Config, analysis *services.AnalysisService) {
	scheduler := NewScheduler(cfg, analysis)

	// 初始化任务
	scheduler.initTasks()

	// 启动主循环
	go scheduler.run()

	logger.Info("调度器已启动",
		"ingest_interval_sec", cfg.Scheduler.IngestIntervalSec,
		"check_interval_sec", cfg.Scheduler.CheckIntervalSec)
}

// initTasks 初始化任务。启动后立即执行第一轮采集
func (s *Scheduler) initTasks() {
	now := time.Now()
	interval := s.ingestInterval()

	s.tasks[TaskIngestion] = &TaskStatus{
		LastRun:     now.Add(-interval),
		NextRun:     now,
		IsRunning:   false,
		Description: fmt.Sprintf("推文采集分析 (每%d秒)", s.cfg.Scheduler.IngestIntervalSec),
	}

	logger.Info("定时任务初始化完成", "task_count", len(s.tasks))
}

func (s *Scheduler) ingestInterval() time.Duration {
	return time.Duration(s.cfg.Scheduler.IngestIntervalSec) * time.Second
}

// run 主循环
func (s *Scheduler) run() {
	checkInterval := s.cfg.Scheduler.CheckIntervalSec
	if checkInterval <= 0 {
		checkInterval = 30 // 默认值
	}
	ticker := time.NewTicker(time.Duration(checkInterval) * time.Second)
	defer ticker.Stop()

	for now := range ticker.C {
		s.checkTasks(now)
	}
}

// checkTasks 检查任务
func (s *Scheduler) checkTasks(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for taskType, status := range s.tasks {
		// 如果任务正在运行，跳过，保证同一任务不会重叠执行
		if status.IsRunning {
			continue
		}

		// 如果到达或超过下次运行时间，执行任务
		if now.After(status.NextRun) || now.Equal(status.NextRun) {
			status.IsRunning = true
			go s.runTask(taskType, now)
		}
	}
}

// runTask 运行任务
func (s *Scheduler) runTask(taskType TaskType, now time.Time) {
	defer func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		status := s.tasks[taskType]
		status.IsRunning = false
		status.LastRun = now

		// 更新下次运行时间
		switch taskType {
		case TaskIngestion:
			status.NextRun = now.Add(s.ingestInterval())
		}

		logger.Info("任务执行完成", "task", status.Description, "next_run", status.NextRun.Format("2006-01-02 15:04:05"))
	}()

	switch taskType {
	case TaskIngestion:
		logger.Info("开始执行推文采集分析")
		if err := s.analysis.RunIngestionCycle(context.Background()); err != nil {
			// 只有存储层错误会到这里，留给下一轮重试
			logger.Error("推文采集分析执行错误", "error", err)
		}
	}
}
