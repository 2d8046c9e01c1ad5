package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"placementai/ml"
	"placementai/monitoring"
)

// ErrTrainingInProgress 已有训练在运行
var ErrTrainingInProgress = errors.New("training already in progress")

// ModelSwapper 接收新训练的模型
type ModelSwapper interface {
	Swap(artifact *ml.ModelArtifact) error
}

// RunRecorder 持久化训练记录
type RunRecorder interface {
	SaveTrainingRun(ctx context.Context, report *ml.TrainingReport, artifactPath string) error
}

// EventPublisher 推送训练事件
type EventPublisher interface {
	Publish(kind monitoring.MessageType, data interface{}) error
}

// RetrainerConfig 重训练配置
type RetrainerConfig struct {
	Train       ml.TrainConfig
	Samples     int
	ModelPath   string
	DatasetPath string // 非空时保存生成的数据集
}

// Retrainer 生成数据 -> 训练 -> 保存 -> 热切换
type Retrainer struct {
	config  RetrainerConfig
	swapper ModelSwapper
	logger  *zap.Logger

	Recorder  RunRecorder
	Publisher EventPublisher
	Metrics   *monitoring.MetricsCollector

	runMu sync.Mutex

	mu             sync.RWMutex
	cron           *cron.Cron
	schedule       string
	lastExecution  time.Time
	lastReport     *ml.TrainingReport
	executionCount int64
}

// NewRetrainer 创建重训练器
func NewRetrainer(config RetrainerConfig, swapper ModelSwapper, logger *zap.Logger) *Retrainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Samples <= 0 {
		config.Samples = ml.DefaultSampleCount
	}
	return &Retrainer{
		config:  config,
		swapper: swapper,
		logger:  logger,
	}
}

// RunOnce 执行一次完整的重训练; 同一时间只允许一次
func (r *Retrainer) RunOnce(ctx context.Context) (*ml.TrainingReport, error) {
	if !r.runMu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer r.runMu.Unlock()

	report, err := r.run(ctx)
	if err != nil {
		r.logger.Error("retraining failed", zap.Error(err))
		r.publish(monitoring.EventTrainingFailed, map[string]string{"error": err.Error()})
		return nil, err
	}

	r.mu.Lock()
	r.lastExecution = time.Now()
	r.lastReport = report
	r.executionCount++
	r.mu.Unlock()

	r.publish(monitoring.EventTrainingCompleted, report)
	return report, nil
}

func (r *Retrainer) run(ctx context.Context) (*ml.TrainingReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.publish(monitoring.EventTrainingStarted, map[string]int{"samples": r.config.Samples})

	dataset, err := ml.NewGenerator(r.config.Train.Seed).Generate(r.config.Samples)
	if err != nil {
		return nil, fmt.Errorf("generate dataset: %w", err)
	}
	if r.config.DatasetPath != "" {
		if err := ml.SaveDataset(r.config.DatasetPath, dataset); err != nil {
			return nil, fmt.Errorf("save dataset: %w", err)
		}
	}

	artifact, report, err := ml.NewTrainer(r.config.Train, r.logger).Run(dataset)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.config.ModelPath != "" {
		if err := artifact.Save(r.config.ModelPath); err != nil {
			return nil, fmt.Errorf("save artifact: %w", err)
		}
	}
	if r.swapper != nil {
		if err := r.swapper.Swap(artifact); err != nil {
			return nil, fmt.Errorf("swap model: %w", err)
		}
	}

	if r.Recorder != nil {
		if err := r.Recorder.SaveTrainingRun(ctx, report, r.config.ModelPath); err != nil {
			// 训练已生效, 只记录审计失败
			r.logger.Warn("failed to record training run", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	if r.Metrics != nil {
		r.Metrics.RecordTraining(report.Train.Accuracy, report.Duration)
	}
	return report, nil
}

func (r *Retrainer) publish(kind monitoring.MessageType, data interface{}) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.Publish(kind, data); err != nil {
		r.logger.Warn("failed to publish event", zap.String("type", string(kind)), zap.Error(err))
	}
}

// Start 按 cron 表达式定期重训练
func (r *Retrainer) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return fmt.Errorf("retrainer is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(context.Background()); errors.Is(err, ErrTrainingInProgress) {
			r.logger.Info("scheduled retraining skipped, a run is in progress")
		}
	}); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	c.Start()

	r.cron = c
	r.schedule = spec
	r.logger.Info("retraining scheduled", zap.String("schedule", spec))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (r *Retrainer) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info("retraining scheduler stopped")
}

// Status 调度状态
type Status struct {
	Running        bool               `json:"running"`
	Schedule       string             `json:"schedule,omitempty"`
	NextRun        *time.Time         `json:"next_run,omitempty"`
	LastExecution  *time.Time         `json:"last_execution,omitempty"`
	ExecutionCount int64              `json:"execution_count"`
	LastReport     *ml.TrainingReport `json:"last_report,omitempty"`
}

// Status 获取调度状态
func (r *Retrainer) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		Running:        r.cron != nil,
		Schedule:       r.schedule,
		ExecutionCount: r.executionCount,
		LastReport:     r.lastReport,
	}
	if r.cron != nil {
		if entries := r.cron.Entries(); len(entries) > 0 {
			next := entries[0].Next
			status.NextRun = &next
		}
	}
	if !r.lastExecution.IsZero() {
		last := r.lastExecution
		status.LastExecution = &last
	}
	return status
}
