package core

import (
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling panics on the UI thread
// =============================================================================

// PanicHandler is called when a callback posted to an EventLoop panics.
// Workers never recover panics themselves; a panicking action unwinds out of
// the drain into whatever host invoked it.
//
// Implementations should be thread-safe.
type PanicHandler interface {
	// HandlePanic is called with the loop name, the recovered value and the
	// stack trace captured at the time of panic.
	HandlePanic(loopName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through Logger (DefaultLogger if nil).
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *DefaultPanicHandler) HandlePanic(loopName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("callback panicked",
		F("loop", loopName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduling metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called on hot paths, including lock-free producer paths, so they
// should be non-blocking and fast.
type Metrics interface {
	// RecordTaskDuration records how long one action or callback took.
	RecordTaskDuration(name string, duration time.Duration)

	// RecordTaskPanic records that a callback panicked on an EventLoop.
	RecordTaskPanic(name string, panicInfo any)

	// RecordQueueDepth records the queue depth observed after a drain or post.
	RecordQueueDepth(name string, depth int)

	// RecordTaskRejected records a schedule or post refused after disposal.
	RecordTaskRejected(name string, reason string)

	// RecordDispatch records a drain request; synchronous is true when the
	// drain ran inline because the producer was already on the UI thread.
	RecordDispatch(name string, synchronous bool)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(name string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(name string, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(name string, depth int)                {}
func (m *NilMetrics) RecordTaskRejected(name string, reason string)          {}
func (m *NilMetrics) RecordDispatch(name string, synchronous bool)           {}

// Rejection reasons passed to Metrics.RecordTaskRejected.
const (
	RejectReasonDisposed = "disposed"
	RejectReasonClosed   = "closed"
)

// =============================================================================
// Configuration
// =============================================================================

// WorkerConfig holds configuration options for a Worker.
// All fields are optional; zero values fall back to defaults.
type WorkerConfig struct {
	// Name labels logs and metrics. Defaults to "worker".
	Name string

	// Logger defaults to NoOpLogger.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultWorkerConfig returns a config with default handlers.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Name:    "worker",
		Logger:  NewNoOpLogger(),
		Metrics: &NilMetrics{},
	}
}

func (c *WorkerConfig) withDefaults() WorkerConfig {
	out := *DefaultWorkerConfig()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	return out
}

// EventLoopConfig holds configuration options for an EventLoop.
type EventLoopConfig struct {
	// Name labels logs and metrics. Defaults to "ui".
	Name string

	// Logger defaults to DefaultLogger.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler defaults to DefaultPanicHandler using Logger.
	PanicHandler PanicHandler

	// HistoryCapacity bounds the execution history. Defaults to 100.
	HistoryCapacity int
}

// DefaultEventLoopConfig returns a config with default handlers.
func DefaultEventLoopConfig() *EventLoopConfig {
	logger := NewDefaultLogger()
	return &EventLoopConfig{
		Name:            "ui",
		Logger:          logger,
		Metrics:         &NilMetrics{},
		PanicHandler:    &DefaultPanicHandler{Logger: logger},
		HistoryCapacity: defaultTaskHistoryCapacity,
	}
}

func (c *EventLoopConfig) withDefaults() EventLoopConfig {
	out := *DefaultEventLoopConfig()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Logger != nil {
		out.Logger = c.Logger
		out.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	return out
}
