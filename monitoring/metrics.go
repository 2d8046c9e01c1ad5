package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

const (
	MetricPredictions        = "predictions_total"
	MetricPredictionsPlaced  = "predictions_placed_total"
	MetricPredictionErrors   = "prediction_errors_total"
	MetricPredictionLatency  = "prediction_latency_ms"
	MetricTrainingRuns       = "training_runs_total"
	MetricTrainingAccuracy   = "training_accuracy"
	MetricTrainingDurationMs = "training_duration_ms"
	MetricModelReloads       = "model_reloads_total"

	maxSamples = 1000
)

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string][]*Metric
	totals      map[string]float64
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		totals:    make(map[string]float64),
		startTime: time.Now(),
	}
}

// RecordMetric 记录指标; 计数器同时累加总量
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	mc.metrics[metric.Name] = append(mc.metrics[metric.Name], metric)
	if metric.Type == MetricTypeCounter {
		mc.totals[metric.Name] += metric.Value
	} else {
		mc.totals[metric.Name] = metric.Value
	}

	// 保留最近的样本
	if len(mc.metrics[metric.Name]) > maxSamples {
		mc.metrics[metric.Name] = mc.metrics[metric.Name][100:]
	}
}

// GetMetric 获取指标样本副本
func (mc *MetricsCollector) GetMetric(name string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}

	result := make([]*Metric, len(metrics))
	for i, m := range metrics {
		metricCopy := *m
		result[i] = &metricCopy
	}
	return result, nil
}

// Value 计数器返回累计值, 仪表返回最新值
func (mc *MetricsCollector) Value(name string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()
	return mc.totals[name]
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string) (map[string]interface{}, error) {
	metrics, err := mc.GetMetric(name)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return map[string]interface{}{"count": 0}, nil
	}

	minValue, maxValue, sum := metrics[0].Value, metrics[0].Value, 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < minValue {
			minValue = m.Value
		}
		if m.Value > maxValue {
			maxValue = m.Value
		}
	}

	return map[string]interface{}{
		"name":    name,
		"count":   len(metrics),
		"latest":  metrics[len(metrics)-1].Value,
		"min":     minValue,
		"max":     maxValue,
		"average": sum / float64(len(metrics)),
	}, nil
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeCounter,
		Value:  value,
		Labels: labels,
	})
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeGauge,
		Value:  value,
		Labels: labels,
	})
}

// RecordPrediction 记录一次预测结果与耗时
func (mc *MetricsCollector) RecordPrediction(placed bool, latency time.Duration, err error) {
	if err != nil {
		mc.IncrCounter(MetricPredictionErrors, 1, nil)
		return
	}
	mc.IncrCounter(MetricPredictions, 1, nil)
	if placed {
		mc.IncrCounter(MetricPredictionsPlaced, 1, nil)
	}
	mc.SetGauge(MetricPredictionLatency, float64(latency.Microseconds())/1000, nil)
}

// RecordTraining 记录一次训练
func (mc *MetricsCollector) RecordTraining(accuracy float64, duration time.Duration) {
	mc.IncrCounter(MetricTrainingRuns, 1, nil)
	mc.SetGauge(MetricTrainingAccuracy, accuracy, nil)
	mc.SetGauge(MetricTrainingDurationMs, float64(duration.Milliseconds()), nil)
}

// Snapshot 导出当前指标, 供 /api/metrics 使用
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.metricsLock.RLock()
	values := make(map[string]float64, len(mc.totals))
	for name, value := range mc.totals {
		values[name] = value
	}
	mc.metricsLock.RUnlock()

	snapshot := map[string]interface{}{
		"metrics": values,
		"uptime":  mc.GetUptime().String(),
	}
	if summary, err := mc.GetMetricSummary(MetricPredictionLatency); err == nil {
		snapshot["latency_ms"] = summary
	}
	snapshot["system"] = mc.GetSystemStats()
	return snapshot
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	names := make([]string, 0, len(mc.metrics))
	for name := range mc.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		samples := mc.metrics[name]
		if len(samples) == 0 {
			continue
		}
		latest := samples[len(samples)-1]
		help := latest.Help
		if help == "" {
			help = fmt.Sprintf("Metric %s", name)
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, latest.Type)
		fmt.Fprintf(&b, "%s %g\n", name, mc.totals[name])
	}
	return b.String()
}

// Run 定期采集运行时指标, 直到 ctx 结束
func (mc *MetricsCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.collectRuntimeMetrics()
		}
	}
}

func (mc *MetricsCollector) collectRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.SetGauge("memory_heap_alloc", float64(m.HeapAlloc), nil)
	mc.SetGauge("system_goroutines", float64(runtime.NumGoroutine()), nil)
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": m.HeapAlloc,
		"gc_count":   m.NumGC,
		"num_cpu":    runtime.NumCPU(),
	}
}
