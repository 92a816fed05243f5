package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of consultation event
type EventType string

const (
	// ConsultationStarted when a validated image and question begin a run
	ConsultationStarted EventType = "consultation_started"
	// ConsultationCompleted when a run finishes and all slots are filled
	ConsultationCompleted EventType = "consultation_completed"
	// ConsultationFailed when validation or configuration aborts a run
	ConsultationFailed EventType = "consultation_failed"
	// ModelAnswered when one model's slot holds answer text
	ModelAnswered EventType = "model_answered"
	// ModelFailed when one model's slot holds an error
	ModelFailed EventType = "model_failed"
)

// ConsultationEvent describes one step of an analysis run
type ConsultationEvent struct {
	EventType    EventType     `json:"event_type"`
	Timestamp    time.Time     `json:"timestamp"`
	ImageSource  string        `json:"image_source"`
	ModelLabel   string        `json:"model_label,omitempty"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ConsultationEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ConsultationEvent)
}

// LoggingObserver logs consultation events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles consultation events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ConsultationEvent) {
	fields := logrus.Fields{
		"event_type":   event.EventType,
		"image_source": event.ImageSource,
		"duration_ms":  event.Duration.Milliseconds(),
		"success":      event.Success,
	}
	if event.ModelLabel != "" {
		fields["model_label"] = event.ModelLabel
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	switch event.EventType {
	case ConsultationStarted:
		o.logger.WithFields(fields).Info("Consultation started")
	case ConsultationCompleted:
		o.logger.WithFields(fields).Info("Consultation completed")
	case ConsultationFailed:
		o.logger.WithFields(fields).Error("Consultation failed")
	case ModelAnswered:
		o.logger.WithFields(fields).Debug("Model answered")
	case ModelFailed:
		o.logger.WithFields(fields).Warn("Model failed")
	default:
		o.logger.WithFields(fields).Info("Consultation event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver aggregates counters from consultation events
type MetricsObserver struct {
	mu                       sync.RWMutex
	totalConsultations       int64
	completedConsultations   int64
	failedConsultations      int64
	modelFailures            map[string]int64
	totalConsultationSeconds time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		modelFailures: make(map[string]int64),
	}
}

// OnEvent handles consultation events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ConsultationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ConsultationStarted:
		o.totalConsultations++
	case ConsultationCompleted:
		o.completedConsultations++
		o.totalConsultationSeconds += event.Duration
	case ConsultationFailed:
		o.failedConsultations++
	case ModelFailed:
		o.modelFailures[event.ModelLabel]++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current counters
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgDuration := time.Duration(0)
	if o.completedConsultations > 0 {
		avgDuration = o.totalConsultationSeconds / time.Duration(o.completedConsultations)
	}

	failures := make(map[string]int64, len(o.modelFailures))
	for label, count := range o.modelFailures {
		failures[label] = count
	}

	return map[string]interface{}{
		"total_consultations":     o.totalConsultations,
		"completed_consultations": o.completedConsultations,
		"failed_consultations":    o.failedConsultations,
		"model_failures":          failures,
		"avg_duration_ms":         avgDuration.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// NotifyObservers notifies all observers of an event. Delivery is
// synchronous so counters are current when the request that produced
// the event returns.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ConsultationEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
