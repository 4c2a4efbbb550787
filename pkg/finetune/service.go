package finetune

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
	"github.com/modelforge-ai/platform/pkg/observability/metrics"
)

// ResultCache stores completed results keyed by fingerprint. Retention
// tiering is the cache's own concern; the pipeline only gets and sets.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.FineTuningResult, bool, error)
	Set(ctx context.Context, key string, result *models.FineTuningResult) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// ModelRegistry persists model metadata and lifecycle status.
type ModelRegistry interface {
	FindSimilarModel(ctx context.Context, category models.ModelCategory, purpose, targetDomain, learnerLevel string) (*models.ModelInfo, error)
	RecordModelUsage(ctx context.Context, id string) error
	RegisterModel(ctx context.Context, id string, metadata models.ModelMetadata, evaluation models.EvaluationResult, size int64) error
	UpdateModelStatus(ctx context.Context, id, status, details string) error
	GetModelInfo(ctx context.Context, id string) (*models.ModelInfo, error)
	ListModels(ctx context.Context, filters models.ModelFilters) ([]models.ModelInfo, error)
	DeleteModel(ctx context.Context, id string) (bool, error)
}

// Trainer produces, optimizes and deploys model artifacts.
type Trainer interface {
	TrainModel(ctx context.Context, category models.ModelCategory, data []models.TrainingRecord, params map[string]interface{}, mode models.TrainingMode, validation []models.TrainingRecord) (*models.TrainingOutput, error)
	OptimizeModel(ctx context.Context, modelID string, options map[string]interface{}) (*models.TrainingOutput, error)
	DeployModelLocally(ctx context.Context, modelID string, options map[string]interface{}) error
	DeployModelToCloud(ctx context.Context, modelID string, options map[string]interface{}) error
	DeployModelToEdge(ctx context.Context, modelID string, options map[string]interface{}) error
}

// Evaluator scores a trained model against held-out data.
type Evaluator interface {
	EvaluateModel(ctx context.Context, modelID string, data []models.TrainingRecord, category models.ModelCategory) (*models.EvaluationResult, error)
}

// OverfittingDetector reads training and evaluation figures and recommends
// whether optimization should run.
type OverfittingDetector interface {
	DetectOverfitting(training models.TrainingMetrics, evaluation *models.EvaluationResult) models.OverfittingAssessment
}

// HardwareProber reports current compute headroom for mode resolution.
type HardwareProber interface {
	Snapshot(ctx context.Context) (*models.HardwareSnapshot, error)
}

// EventPublisher pushes lifecycle events to the event bus. Optional; a nil
// publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Dependencies are the collaborators the pipeline sequences.
type Dependencies struct {
	Cache     ResultCache
	Registry  ModelRegistry
	Trainer   Trainer
	Evaluator Evaluator
	Detector  OverfittingDetector
	Hardware  HardwareProber
	Events    EventPublisher
}

// Settings tune pipeline behavior. Zero values fall back to safe defaults.
type Settings struct {
	Profile                *TuningProfile
	MaxConcurrentTrainings int
	RequestTimeout         time.Duration
	TrainerMaxAttempts     int
	Source                 string
}

type Service struct {
	cache     ResultCache
	registry  ModelRegistry
	trainer   Trainer
	evaluator Evaluator
	detector  OverfittingDetector
	hardware  HardwareProber
	events    EventPublisher
	profile   TuningProfile

	mu         sync.RWMutex
	pinnedMode models.TrainingMode

	flight      singleflight.Group
	trainSem    chan struct{}
	maxAttempts int
	timeout     time.Duration
	source      string
}

func NewService(deps Dependencies, settings Settings) *Service {
	profile := DefaultProfile()
	if settings.Profile != nil {
		profile = *settings.Profile
	}
	maxConcurrent := settings.MaxConcurrentTrainings
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	attempts := settings.TrainerMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	source := settings.Source
	if source == "" {
		source = "finetune-service"
	}

	return &Service{
		cache:       deps.Cache,
		registry:    deps.Registry,
		trainer:     deps.Trainer,
		evaluator:   deps.Evaluator,
		detector:    deps.Detector,
		hardware:    deps.Hardware,
		events:      deps.Events,
		profile:     profile,
		pinnedMode:  models.ModeAuto,
		trainSem:    make(chan struct{}, maxConcurrent),
		maxAttempts: attempts,
		timeout:     settings.RequestTimeout,
		source:      source,
	}
}

// FineTuneModel runs one request through the pipeline. It never returns an
// error: every expected failure resolves to a result with Success=false.
// Concurrent requests with the same fingerprint share a single execution.
func (s *Service) FineTuneModel(ctx context.Context, req models.FineTuningRequest) models.FineTuningResult {
	metrics.IncFineTuneRequest()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if !req.CachingOn() {
		return s.process(ctx, req, "")
	}

	key := BuildCacheKey(req)
	if cached, ok := s.lookupCache(ctx, key); ok {
		metrics.IncCacheHit()
		logger.Log.WithFields(map[string]interface{}{
			"cache_key": key,
			"model_id":  cached.ModelID,
		}).Info("Returning cached fine-tuning result")
		return *cached
	}
	metrics.IncCacheMiss()

	v, _, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.process(ctx, req, key), nil
	})
	return v.(models.FineTuningResult)
}

// SetOperationMode pins the mode used for requests that do not carry an
// explicit preference. Pinning auto restores table-driven resolution.
func (s *Service) SetOperationMode(mode models.TrainingMode) error {
	if !mode.Valid() {
		return ValidationError{reason: fmt.Errorf("%w: %q", errInvalidMode, mode)}
	}
	s.mu.Lock()
	s.pinnedMode = mode
	s.mu.Unlock()
	logger.Log.WithField("mode", string(mode)).Info("Operation mode updated")
	return nil
}

func (s *Service) OperationMode() models.TrainingMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinnedMode
}

func (s *Service) GetModelInfo(ctx context.Context, id string) (*models.ModelInfo, error) {
	return s.registry.GetModelInfo(ctx, id)
}

func (s *Service) ListModels(ctx context.Context, filters models.ModelFilters) ([]models.ModelInfo, error) {
	return s.registry.ListModels(ctx, filters)
}

// DeleteModel removes a model from the registry and purges every cached
// result that references it.
func (s *Service) DeleteModel(ctx context.Context, id string) (bool, error) {
	deleted, err := s.registry.DeleteModel(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	s.purgeCachedResults(ctx, id)
	s.publish("model.deleted", map[string]interface{}{"model_id": id})
	logger.Log.WithField("model_id", id).Info("Model deleted")
	return true, nil
}

func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *Service) lookupCache(ctx context.Context, key string) (*models.FineTuningResult, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Log.WithError(err).WithField("cache_key", key).Warn("Cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return cached, true
}

func (s *Service) purgeCachedResults(ctx context.Context, modelID string) {
	keys, err := s.cache.ListKeys(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to list cache keys for purge")
		return
	}
	for _, key := range keys {
		cached, ok := s.lookupCache(ctx, key)
		if !ok || cached.ModelID != modelID {
			continue
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Log.WithError(err).WithField("cache_key", key).Warn("Failed to delete cached result")
		}
	}
}

// publish sends a lifecycle event on a detached context so terminal events
// survive request cancellation.
func (s *Service) publish(eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.events.PublishEvent(ctx, eventType, s.source, data)
}
