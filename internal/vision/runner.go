package vision

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-medical-image-analyzer/internal/errors"
	"go-medical-image-analyzer/internal/logger"
)

// Runner queries every configured model with the same image and
// question and collects one result slot per model, in spec order.
//
// Slots are independent: a timeout, error status or garbage response in
// one slot is captured there and never prevents or alters the sibling
// queries. Only validation and configuration problems abort a run as a
// whole, before any network call.
type Runner struct {
	querier  Querier
	specs    []ModelSpec
	parallel bool
}

// Option configures a Runner
type Option func(*Runner)

// WithParallelQueries dispatches the per-model queries concurrently and
// joins them before returning. Slot order and failure isolation are
// unchanged; only wall-clock time differs.
func WithParallelQueries() Option {
	return func(r *Runner) {
		r.parallel = true
	}
}

// NewRunner creates a runner over the given ordered model list
func NewRunner(querier Querier, specs []ModelSpec, opts ...Option) *Runner {
	r := &Runner{
		querier: querier,
		specs:   specs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Specs returns the configured model list in slot order
func (r *Runner) Specs() []ModelSpec {
	return r.specs
}

// Run executes one analysis: encode the validated image bytes once,
// query each model, return the slots in configuration order. The
// returned error is global (empty question, no models, missing
// credential) and means no query was attempted; per-model failures
// live inside their slot.
func (r *Runner) Run(ctx context.Context, imageData []byte, question string) ([]ModelResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewValidationError("question must not be empty", nil)
	}
	if len(r.specs) == 0 {
		return nil, apperrors.NewConfigurationError("no models configured")
	}
	if err := r.querier.Ready(); err != nil {
		return nil, err
	}

	encoded := EncodeImage(imageData)

	results := make([]ModelResult, len(r.specs))
	if r.parallel {
		var wg sync.WaitGroup
		for i, spec := range r.specs {
			wg.Add(1)
			go func(i int, spec ModelSpec) {
				defer wg.Done()
				results[i] = r.queryModel(ctx, spec, question, encoded)
			}(i, spec)
		}
		wg.Wait()
	} else {
		for i, spec := range r.specs {
			results[i] = r.queryModel(ctx, spec, question, encoded)
		}
	}
	return results, nil
}

func (r *Runner) queryModel(ctx context.Context, spec ModelSpec, question, encoded string) ModelResult {
	start := time.Now()
	content, err := r.querier.Query(ctx, spec.ID, question, encoded)
	elapsed := time.Since(start)

	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"model":       spec.ID,
			"label":       spec.Label,
			"duration_ms": elapsed.Milliseconds(),
		}).Error("Model query failed")
		return ModelResult{Spec: spec, Err: err}
	}

	logger.WithFields(logrus.Fields{
		"model":        spec.ID,
		"label":        spec.Label,
		"duration_ms":  elapsed.Milliseconds(),
		"answer_bytes": len(content),
	}).Debug("Model query completed")
	return ModelResult{Spec: spec, Content: content}
}
