package observer

import (
	"context"
	"testing"
	"time"
)

func TestMetricsObserver_Counters(t *testing.T) {
	metrics := NewMetricsObserver()
	ctx := context.Background()

	metrics.OnEvent(ctx, ConsultationEvent{EventType: ConsultationStarted})
	metrics.OnEvent(ctx, ConsultationEvent{EventType: ConsultationCompleted, Duration: 2 * time.Second})
	metrics.OnEvent(ctx, ConsultationEvent{EventType: ConsultationStarted})
	metrics.OnEvent(ctx, ConsultationEvent{EventType: ConsultationFailed})
	metrics.OnEvent(ctx, ConsultationEvent{EventType: ModelFailed, ModelLabel: "Model B"})
	metrics.OnEvent(ctx, ConsultationEvent{EventType: ModelFailed, ModelLabel: "Model B"})

	got := metrics.GetMetrics()

	if got["total_consultations"].(int64) != 2 {
		t.Errorf("total_consultations = %v, want 2", got["total_consultations"])
	}
	if got["completed_consultations"].(int64) != 1 {
		t.Errorf("completed_consultations = %v, want 1", got["completed_consultations"])
	}
	if got["failed_consultations"].(int64) != 1 {
		t.Errorf("failed_consultations = %v, want 1", got["failed_consultations"])
	}
	if got["avg_duration_ms"].(int64) != 2000 {
		t.Errorf("avg_duration_ms = %v, want 2000", got["avg_duration_ms"])
	}

	failures := got["model_failures"].(map[string]int64)
	if failures["Model B"] != 2 {
		t.Errorf("model_failures[Model B] = %d, want 2", failures["Model B"])
	}
}

func TestEventPublisher_PanickingObserverDoesNotBlockOthers(t *testing.T) {
	publisher := NewEventPublisher()

	metrics := NewMetricsObserver()
	publisher.Subscribe(panickingObserver{})
	publisher.Subscribe(metrics)

	publisher.NotifyObservers(context.Background(), ConsultationEvent{EventType: ConsultationStarted})

	if got := metrics.GetMetrics()["total_consultations"].(int64); got != 1 {
		t.Errorf("expected event delivered past panicking observer, counter = %d", got)
	}
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event ConsultationEvent) {
	panic("boom")
}

func (panickingObserver) GetObserverName() string { return "panicking_observer" }
