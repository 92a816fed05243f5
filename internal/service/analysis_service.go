package service

import (
	"context"
	"time"

	apperrors "go-medical-image-analyzer/internal/errors"
	"go-medical-image-analyzer/internal/observer"
	"go-medical-image-analyzer/internal/storage"
	"go-medical-image-analyzer/internal/validation"
	"go-medical-image-analyzer/internal/vision"
)

// AnalysisOutcome is the result of one consultation: the validated
// image plus one slot per configured model, in configuration order
type AnalysisOutcome struct {
	Image   *validation.ValidatedImage
	Results []vision.ModelResult
	Elapsed time.Duration
}

// AnalysisService runs the full flow: validate the image, consult every
// configured model, publish events along the way
type AnalysisService interface {
	// AnalyzeImage validates uploaded bytes and consults the models
	AnalyzeImage(ctx context.Context, data []byte, question, source string) (*AnalysisOutcome, error)

	// AnalyzeImageURL fetches the image from a remote source first
	AnalyzeImageURL(ctx context.Context, imageURL, question string) (*AnalysisOutcome, error)

	// Models returns the configured model list in slot order
	Models() []vision.ModelSpec
}

type analysisService struct {
	validator validation.ImageValidator
	runner    *vision.Runner
	fetcher   storage.ImageFetcher
	publisher observer.Subject
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	validator validation.ImageValidator,
	runner *vision.Runner,
	fetcher storage.ImageFetcher,
	publisher observer.Subject,
) AnalysisService {
	return &analysisService{
		validator: validator,
		runner:    runner,
		fetcher:   fetcher,
		publisher: publisher,
	}
}

func (s *analysisService) AnalyzeImage(ctx context.Context, data []byte, question, source string) (*AnalysisOutcome, error) {
	start := time.Now()
	s.notify(ctx, observer.ConsultationEvent{
		EventType:   observer.ConsultationStarted,
		Timestamp:   start,
		ImageSource: source,
	})

	img, err := s.validator.Validate(data)
	if err != nil {
		s.notifyFailed(ctx, source, start, err)
		return nil, err
	}

	results, err := s.runner.Run(ctx, img.Data, question)
	if err != nil {
		s.notifyFailed(ctx, source, start, err)
		return nil, err
	}

	for _, result := range results {
		event := observer.ConsultationEvent{
			Timestamp:   time.Now(),
			ImageSource: source,
			ModelLabel:  result.Spec.Label,
			Success:     result.OK(),
		}
		if result.OK() {
			event.EventType = observer.ModelAnswered
		} else {
			event.EventType = observer.ModelFailed
			event.ErrorMessage = result.ErrorText()
		}
		s.notify(ctx, event)
	}

	elapsed := time.Since(start)
	s.notify(ctx, observer.ConsultationEvent{
		EventType:   observer.ConsultationCompleted,
		Timestamp:   time.Now(),
		ImageSource: source,
		Duration:    elapsed,
		Success:     true,
	})

	return &AnalysisOutcome{
		Image:   img,
		Results: results,
		Elapsed: elapsed,
	}, nil
}

func (s *analysisService) AnalyzeImageURL(ctx context.Context, imageURL, question string) (*AnalysisOutcome, error) {
	data, err := s.fetcher.FetchImage(ctx, imageURL)
	if err != nil {
		fetchErr := apperrors.NewNetworkError("failed to fetch image", err)
		s.notify(ctx, observer.ConsultationEvent{
			EventType:    observer.ConsultationFailed,
			Timestamp:    time.Now(),
			ImageSource:  imageURL,
			ErrorMessage: fetchErr.Error(),
		})
		return nil, fetchErr
	}
	return s.AnalyzeImage(ctx, data, question, imageURL)
}

func (s *analysisService) Models() []vision.ModelSpec {
	return s.runner.Specs()
}

func (s *analysisService) notify(ctx context.Context, event observer.ConsultationEvent) {
	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, event)
	}
}

func (s *analysisService) notifyFailed(ctx context.Context, source string, start time.Time, err error) {
	s.notify(ctx, observer.ConsultationEvent{
		EventType:    observer.ConsultationFailed,
		Timestamp:    time.Now(),
		ImageSource:  source,
		Duration:     time.Since(start),
		ErrorMessage: err.Error(),
	})
}
