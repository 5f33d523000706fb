package utils

import (
	"context"
	"runtime"
	"time"

	"github.com/caremarket/onboarding-api/internal/logging"
	"github.com/caremarket/onboarding-api/internal/observability"
	"go.uber.org/zap"
)

// PerformanceMonitor monitors performance metrics for operations
type PerformanceMonitor struct {
	startTime    time.Time
	operation    string
	logger       *logging.SafeLogger
	checkpoints  []Checkpoint
	memoryBefore runtime.MemStats
}

// Checkpoint represents a performance checkpoint
type Checkpoint struct {
	Name     string
	Duration time.Duration
	Memory   uint64
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor(ctx context.Context, operation string) *PerformanceMonitor {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &PerformanceMonitor{
		startTime:    time.Now(),
		operation:    operation,
		logger:       logging.Logger,
		checkpoints:  make([]Checkpoint, 0),
		memoryBefore: memStats,
	}
}

// Checkpoint adds a performance checkpoint
func (pm *PerformanceMonitor) Checkpoint(name string) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	checkpoint := Checkpoint{
		Name:     name,
		Duration: time.Since(pm.startTime),
		Memory:   memStats.Alloc - pm.memoryBefore.Alloc,
	}

	pm.checkpoints = append(pm.checkpoints, checkpoint)

	pm.logger.Debug("performance checkpoint",
		zap.String("operation", pm.operation),
		zap.String("checkpoint", name),
		zap.Duration("duration", checkpoint.Duration),
		zap.Int64("memory_delta_bytes", int64(checkpoint.Memory)),
	)
}

// End completes the performance monitoring and logs results
func (pm *PerformanceMonitor) End() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	totalDuration := time.Since(pm.startTime)
	totalMemoryDelta := memStats.Alloc - pm.memoryBefore.Alloc

	pm.logger.Info("performance monitoring completed",
		zap.String("operation", pm.operation),
		zap.Duration("total_duration", totalDuration),
		zap.Int64("total_memory_delta_bytes", int64(totalMemoryDelta)),
		zap.Int("checkpoint_count", len(pm.checkpoints)),
	)

	observability.OperationDuration.WithLabelValues(pm.operation).Observe(totalDuration.Seconds())
	observability.OperationMemoryUsage.WithLabelValues(pm.operation).Observe(float64(totalMemoryDelta))
}

// PerformanceWarning logs a performance warning if duration exceeds threshold
func (pm *PerformanceMonitor) PerformanceWarning(threshold time.Duration, message string) {
	elapsed := time.Since(pm.startTime)
	if elapsed > threshold {
		pm.logger.Warn("performance warning",
			zap.String("operation", pm.operation),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold),
			zap.String("message", message),
		)
	}
}

// MonitorFunction monitors the performance of a function
func MonitorFunction(ctx context.Context, operation string, fn func() error) error {
	monitor := NewPerformanceMonitor(ctx, operation)
	defer monitor.End()

	err := fn()

	if err != nil {
		monitor.logger.Error("operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}

	return err
}
