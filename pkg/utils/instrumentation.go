package utils

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Instrumentation provides timing and progress tracking capabilities
type Instrumentation struct {
	logger  *slog.Logger
	verbose bool
}

// NewInstrumentation creates a new instrumentation instance
func NewInstrumentation(logger *slog.Logger, verbose bool) *Instrumentation {
	return &Instrumentation{
		logger:  logger,
		verbose: verbose,
	}
}

// TimedOperation wraps a function with timing instrumentation
func (i *Instrumentation) TimedOperation(name string, operation func() error) error {
	start := time.Now()
	i.logger.Debug("Starting operation", "operation", name)

	err := operation()
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("Operation failed", "operation", name, "duration_seconds", duration.Seconds(), "error", err)
	} else {
		i.logger.Debug("Operation completed", "operation", name, "duration_seconds", duration.Seconds())
	}

	return err
}

// PhaseTracker tracks multiple phases of an operation
type PhaseTracker struct {
	name         string
	phases       map[string]time.Time
	currentPhase string
	startTime    time.Time
	verbose      bool
	logger       *slog.Logger
}

// NewPhaseTracker creates a new phase tracker
func (i *Instrumentation) NewPhaseTracker(name string) *PhaseTracker {
	i.logger.Debug("Starting operation", "operation", name)

	return &PhaseTracker{
		name:      name,
		phases:    make(map[string]time.Time),
		startTime: time.Now(),
		verbose:   i.verbose,
		logger:    i.logger,
	}
}

// StartPhase begins tracking a new phase
func (pt *PhaseTracker) StartPhase(phaseName string) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.currentPhase = phaseName
	pt.phases[phaseName] = time.Now()

	pt.logger.Debug("Starting phase", "phase", phaseName, "parent_operation", pt.name)
}

// EndPhase ends the current phase
func (pt *PhaseTracker) EndPhase() {
	if pt.currentPhase == "" {
		return
	}

	if start, exists := pt.phases[pt.currentPhase]; exists {
		duration := time.Since(start)
		pt.logger.Debug("Phase completed", "phase", pt.currentPhase, "duration_seconds", duration.Seconds(), "parent_operation", pt.name)
	}

	pt.currentPhase = ""
}

// Complete finishes the entire operation
func (pt *PhaseTracker) Complete(totalItems int) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	totalDuration := time.Since(pt.startTime)
	memUsage := GetMemoryUsage()

	pt.logger.Debug("Operation completed",
		"operation", pt.name,
		"items", totalItems,
		"duration_seconds", totalDuration.Seconds(),
		"memory_usage", memUsage)
}

// GetMemoryUsage returns current memory usage in a human-readable format
func GetMemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Convert bytes to megabytes
	allocMB := float64(m.Alloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024

	return fmt.Sprintf("%.1fMB allocated, %.1fMB system", allocMB, sysMB)
}
