package finetune

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.FineTuningResult
	gets    int
	sets    int
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.FineTuningResult)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*models.FineTuningResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	result, ok := c.entries[key]
	return result, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, result *models.FineTuningResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = result
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) ListKeys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *fakeCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.FineTuningResult)
	return nil
}

type fakeRegistry struct {
	mu          sync.Mutex
	similar     *models.ModelInfo
	similarErr  error
	findCalls   int
	usageIDs    []string
	registered  map[string]models.ModelMetadata
	evaluations map[string]models.EvaluationResult
	registerErr error
	statuses    map[string]string
	deleteOK    bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		registered:  make(map[string]models.ModelMetadata),
		evaluations: make(map[string]models.EvaluationResult),
		statuses:    make(map[string]string),
	}
}

func (r *fakeRegistry) FindSimilarModel(ctx context.Context, category models.ModelCategory, purpose, targetDomain, learnerLevel string) (*models.ModelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.similarErr != nil {
		return nil, r.similarErr
	}
	return r.similar, nil
}

func (r *fakeRegistry) RecordModelUsage(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usageIDs = append(r.usageIDs, id)
	return nil
}

func (r *fakeRegistry) RegisterModel(ctx context.Context, id string, metadata models.ModelMetadata, evaluation models.EvaluationResult, size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return r.registerErr
	}
	r.registered[id] = metadata
	r.evaluations[id] = evaluation
	return nil
}

func (r *fakeRegistry) UpdateModelStatus(ctx context.Context, id, status, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	return nil
}

func (r *fakeRegistry) GetModelInfo(ctx context.Context, id string) (*models.ModelInfo, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRegistry) ListModels(ctx context.Context, filters models.ModelFilters) ([]models.ModelInfo, error) {
	return nil, nil
}

func (r *fakeRegistry) DeleteModel(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteOK, nil
}

type fakeTrainer struct {
	mu            sync.Mutex
	trainCalls    int
	trainErr      error
	trainDelay    time.Duration
	output        models.TrainingOutput
	optimizeCalls int
	optimizeErr   error
	optimized     models.TrainingOutput
	optimizeOpts  map[string]interface{}
	deployErr     error
	deployedEnvs  []string
}

func newFakeTrainer() *fakeTrainer {
	return &fakeTrainer{
		output:    models.TrainingOutput{ModelID: "ft-new", ModelSize: 100, Metrics: models.TrainingMetrics{FinalLoss: 0.3, ValidationLoss: 0.35}},
		optimized: models.TrainingOutput{ModelID: "ft-new", ModelSize: 60, Metrics: models.TrainingMetrics{FinalLoss: 0.3, ValidationLoss: 0.35}},
	}
}

func (f *fakeTrainer) TrainModel(ctx context.Context, category models.ModelCategory, data []models.TrainingRecord, params map[string]interface{}, mode models.TrainingMode, validation []models.TrainingRecord) (*models.TrainingOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.trainCalls++
	delay := f.trainDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if f.trainErr != nil {
		return nil, f.trainErr
	}
	out := f.output
	return &out, nil
}

func (f *fakeTrainer) OptimizeModel(ctx context.Context, modelID string, options map[string]interface{}) (*models.TrainingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizeCalls++
	f.optimizeOpts = options
	if f.optimizeErr != nil {
		return nil, f.optimizeErr
	}
	out := f.optimized
	return &out, nil
}

func (f *fakeTrainer) DeployModelLocally(ctx context.Context, modelID string, options map[string]interface{}) error {
	return f.recordDeploy("local")
}

func (f *fakeTrainer) DeployModelToCloud(ctx context.Context, modelID string, options map[string]interface{}) error {
	return f.recordDeploy("cloud")
}

func (f *fakeTrainer) DeployModelToEdge(ctx context.Context, modelID string, options map[string]interface{}) error {
	return f.recordDeploy("edge")
}

func (f *fakeTrainer) recordDeploy(env string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployErr != nil {
		return f.deployErr
	}
	f.deployedEnvs = append(f.deployedEnvs, env)
	return nil
}

type fakeEvaluator struct {
	mu     sync.Mutex
	calls  int
	result models.EvaluationResult
	err    error
}

func (f *fakeEvaluator) EvaluateModel(ctx context.Context, modelID string, data []models.TrainingRecord, category models.ModelCategory) (*models.EvaluationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	res.ModelID = modelID
	return &res, nil
}

type fakeDetector struct {
	assessment models.OverfittingAssessment
}

func (f *fakeDetector) DetectOverfitting(training models.TrainingMetrics, evaluation *models.EvaluationResult) models.OverfittingAssessment {
	return f.assessment
}

type fakeProber struct {
	mu    sync.Mutex
	calls int
	snap  models.HardwareSnapshot
	err   error
}

func (f *fakeProber) Snapshot(ctx context.Context) (*models.HardwareSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snap
	return &snap, nil
}

type fixture struct {
	cache    *fakeCache
	registry *fakeRegistry
	trainer  *fakeTrainer
	eval     *fakeEvaluator
	detector *fakeDetector
	prober   *fakeProber
	service  *Service
}

func newFixture(settings Settings) *fixture {
	f := &fixture{
		cache:    newFakeCache(),
		registry: newFakeRegistry(),
		trainer:  newFakeTrainer(),
		eval:     &fakeEvaluator{result: models.EvaluationResult{Success: true, Metrics: map[string]float64{"accuracy": 0.9}}},
		detector: &fakeDetector{},
		prober:   &fakeProber{snap: models.HardwareSnapshot{CPUCores: 8, CPUUtilization: 0.2, MemoryAvailableMB: 16384}},
	}
	f.service = NewService(Dependencies{
		Cache:     f.cache,
		Registry:  f.registry,
		Trainer:   f.trainer,
		Evaluator: f.eval,
		Detector:  f.detector,
		Hardware:  f.prober,
	}, settings)
	return f
}

func trainingRequest() models.FineTuningRequest {
	return models.FineTuningRequest{
		ModelCategory: models.CategoryTextClassification,
		Purpose:       "sentiment",
		TargetDomain:  "support-tickets",
		TrainingData: []models.TrainingRecord{
			{"text": "works perfectly", "label": "positive"},
			{"text": "broke after a day", "label": "negative"},
		},
	}
}

func TestFineTuneCacheHitReturnsStoredResult(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()

	canned := &models.FineTuningResult{
		ModelID:       "ft-cached",
		ModelCategory: req.ModelCategory,
		Purpose:       req.Purpose,
		Success:       true,
		Metrics:       map[string]float64{"accuracy": 0.88},
		Warnings:      []models.Warning{{Code: "evaluation_failed", Message: "old news"}},
		Metadata:      models.ResultMetadata{Mode: models.ModeLocal, Registered: true},
	}
	f.cache.entries[BuildCacheKey(req)] = canned

	result := f.service.FineTuneModel(context.Background(), req)
	if !reflect.DeepEqual(result, *canned) {
		t.Fatalf("expected the cached result verbatim, got %+v", result)
	}
	if f.trainer.trainCalls != 0 {
		t.Fatal("expected no training on a cache hit")
	}
	if f.registry.findCalls != 0 {
		t.Fatal("expected no registry lookup on a cache hit")
	}
	if f.prober.calls != 0 {
		t.Fatal("expected no hardware probe on a cache hit")
	}
	if f.cache.sets != 0 {
		t.Fatal("expected no cache rewrite on a hit")
	}
}

func TestFineTuneReusesSimilarModel(t *testing.T) {
	f := newFixture(Settings{})
	f.registry.similar = &models.ModelInfo{
		ID:          "ft-old",
		ModelSize:   2048,
		EvalMetrics: map[string]float64{"accuracy": 0.91},
		Metadata:    models.ModelMetadata{Optimized: true},
	}

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.ModelID != "ft-old" {
		t.Fatalf("expected reused model id, got %q", result.ModelID)
	}
	if !result.Metadata.ExistingModel {
		t.Fatal("expected existing-model flag")
	}
	if !result.Metadata.Optimized {
		t.Fatal("expected optimized flag carried over from the registry")
	}
	if f.trainer.trainCalls != 0 {
		t.Fatal("expected no training when a similar model exists")
	}
	if len(f.registry.usageIDs) != 1 || f.registry.usageIDs[0] != "ft-old" {
		t.Fatalf("expected usage recorded for ft-old, got %v", f.registry.usageIDs)
	}
	if result.Metrics["accuracy"] != 0.91 || result.Metrics["model_size"] != 2048 {
		t.Fatalf("unexpected reuse metrics: %v", result.Metrics)
	}
	if f.cache.sets != 1 {
		t.Fatal("expected reuse results to be cached")
	}
}

func TestFineTuneForceRetrainIgnoresExisting(t *testing.T) {
	f := newFixture(Settings{})
	f.registry.similar = &models.ModelInfo{ID: "ft-old"}

	req := trainingRequest()
	req.ForceRetrain = true
	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.ModelID != "ft-new" {
		t.Fatalf("expected a fresh model, got %q", result.ModelID)
	}
	if result.Metadata.ExistingModel {
		t.Fatal("expected existing-model flag off under force retrain")
	}
	if f.trainer.trainCalls != 1 {
		t.Fatalf("expected one training run, got %d", f.trainer.trainCalls)
	}
}

func TestFineTunePipelineSuccess(t *testing.T) {
	f := newFixture(Settings{})
	result := f.service.FineTuneModel(context.Background(), trainingRequest())

	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.ModelID != "ft-new" {
		t.Fatalf("unexpected model id %q", result.ModelID)
	}
	if result.Metadata.Mode != models.ModeLocal {
		t.Fatalf("expected local mode for a tiny set on idle hardware, got %s", result.Metadata.Mode)
	}
	if !result.Metadata.Registered || result.Metadata.Deployed {
		t.Fatalf("unexpected lifecycle flags: %+v", result.Metadata)
	}
	if result.Metrics["final_loss"] != 0.3 || result.Metrics["validation_loss"] != 0.35 {
		t.Fatalf("expected training losses in metrics, got %v", result.Metrics)
	}
	if result.Metrics["model_size"] != 100 {
		t.Fatalf("expected model size metric, got %v", result.Metrics)
	}
	if _, ok := result.Metrics["reduction_ratio"]; ok {
		t.Fatal("expected no reduction ratio without optimization")
	}
	if result.Metrics["accuracy"] != 0.9 {
		t.Fatalf("expected evaluation metrics merged in, got %v", result.Metrics)
	}

	metadata, ok := f.registry.registered["ft-new"]
	if !ok {
		t.Fatal("expected the model to be registered")
	}
	if metadata.TrainingDatasetSize != 2 {
		t.Fatalf("expected processed dataset size 2, got %d", metadata.TrainingDatasetSize)
	}
	if metadata.LearnerSkillLevel != "any" {
		t.Fatalf("expected default skill level, got %q", metadata.LearnerSkillLevel)
	}
	if f.cache.sets != 1 {
		t.Fatal("expected the result to be cached")
	}
}

func TestFineTuneOptimizesOnOverfittingSignal(t *testing.T) {
	f := newFixture(Settings{})
	f.detector.assessment = models.OverfittingAssessment{IsOverfitting: true, RecommendedPruningThreshold: 0.2}

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.trainer.optimizeCalls != 1 {
		t.Fatalf("expected one optimization run, got %d", f.trainer.optimizeCalls)
	}
	if !result.Metadata.Optimized {
		t.Fatal("expected optimized flag")
	}
	if result.Metrics["reduction_ratio"] != 0.4 {
		t.Fatalf("expected reduction ratio 0.4 for 100 to 60, got %v", result.Metrics["reduction_ratio"])
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != "overfitting_detected" {
		t.Fatalf("expected an overfitting warning, got %v", result.Warnings)
	}
	if f.trainer.optimizeOpts["address_overfitting"] != true {
		t.Fatalf("expected overfitting passed to the optimizer, got %v", f.trainer.optimizeOpts)
	}
	if f.trainer.optimizeOpts["pruning_threshold"] != 0.2 {
		t.Fatalf("expected the recommended threshold, got %v", f.trainer.optimizeOpts)
	}
}

func TestFineTuneOptimizesOnCallerOptions(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.Optimization = map[string]interface{}{"quantize": "int8"}

	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.trainer.optimizeCalls != 1 {
		t.Fatalf("expected one optimization run, got %d", f.trainer.optimizeCalls)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warning without an overfitting signal, got %v", result.Warnings)
	}
	if f.trainer.optimizeOpts["quantize"] != "int8" {
		t.Fatalf("expected caller options forwarded, got %v", f.trainer.optimizeOpts)
	}
	if f.trainer.optimizeOpts["address_overfitting"] != false {
		t.Fatalf("expected overfitting flag off, got %v", f.trainer.optimizeOpts)
	}
}

func TestFineTuneSkipsOptimizationWithoutTriggers(t *testing.T) {
	f := newFixture(Settings{})
	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.trainer.optimizeCalls != 0 {
		t.Fatalf("expected no optimization, got %d runs", f.trainer.optimizeCalls)
	}
	if result.Metadata.Optimized {
		t.Fatal("expected optimized flag off")
	}
}

func TestFineTuneReductionRatioZeroWhenOriginalUnknown(t *testing.T) {
	f := newFixture(Settings{})
	f.trainer.output.ModelSize = 0
	f.trainer.optimized.ModelSize = 0
	req := trainingRequest()
	req.Optimization = map[string]interface{}{"quantize": "int8"}

	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.Metrics["reduction_ratio"] != 0 {
		t.Fatalf("expected reduction ratio 0 for unknown original size, got %v", result.Metrics["reduction_ratio"])
	}
}

func TestFineTuneEvaluationFailureIsNonFatal(t *testing.T) {
	f := newFixture(Settings{})
	f.eval.err = errors.New("evaluator exploded")

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success despite evaluation failure, got %+v", result.Error)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != "evaluation_failed" {
		t.Fatalf("expected an evaluation warning, got %v", result.Warnings)
	}
	if _, ok := result.Metrics["accuracy"]; ok {
		t.Fatal("expected no evaluation metrics after a failure")
	}
	if result.Metrics["final_loss"] != 0.3 {
		t.Fatalf("expected training metrics preserved, got %v", result.Metrics)
	}

	stored, ok := f.registry.evaluations["ft-new"]
	if !ok {
		t.Fatal("expected registration with the failed evaluation")
	}
	if stored.Success || stored.Error == "" {
		t.Fatalf("expected the stored evaluation to record the failure, got %+v", stored)
	}
}

func TestFineTuneDeploymentFailureKeepsRegistration(t *testing.T) {
	f := newFixture(Settings{})
	f.trainer.deployErr = errors.New("disk full")
	req := trainingRequest()
	req.Deployment = &models.DeploymentSpec{Environment: models.DeployLocal}

	result := f.service.FineTuneModel(context.Background(), req)
	if result.Success {
		t.Fatal("expected failure when deployment fails")
	}
	if !result.Metadata.Registered {
		t.Fatal("expected the model to stay registered")
	}
	if result.ModelID != "" {
		t.Fatalf("expected no model id on a failed result, got %q", result.ModelID)
	}
	if result.Error == nil || !strings.Contains(result.Error.Detail, "ft-new") {
		t.Fatalf("expected the detail to name the registered model, got %+v", result.Error)
	}
	if f.registry.statuses["ft-new"] != models.ModelStatusDeployFailed {
		t.Fatalf("expected deploy_failed status, got %q", f.registry.statuses["ft-new"])
	}
	if f.cache.sets != 0 {
		t.Fatal("expected failed results to stay out of the cache")
	}
}

func TestFineTuneRejectsUnknownDeploymentEnvironment(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.Deployment = &models.DeploymentSpec{Environment: models.DeploymentEnvironment("orbital")}

	result := f.service.FineTuneModel(context.Background(), req)
	if result.Success {
		t.Fatal("expected failure for an unsupported environment")
	}
	if !strings.Contains(result.Error.Message, "unsupported deployment environment") {
		t.Fatalf("unexpected error message: %q", result.Error.Message)
	}
	if !result.Metadata.Registered {
		t.Fatal("expected registration to survive the bad environment")
	}
	if len(f.trainer.deployedEnvs) != 0 {
		t.Fatalf("expected no deployment attempt, got %v", f.trainer.deployedEnvs)
	}
}

func TestFineTuneDeploySuccessUpdatesStatus(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.Deployment = &models.DeploymentSpec{Environment: models.DeployEdge}

	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if !result.Metadata.Deployed {
		t.Fatal("expected deployed flag")
	}
	if f.registry.statuses["ft-new"] != "deployed_edge" {
		t.Fatalf("expected deployed_edge status, got %q", f.registry.statuses["ft-new"])
	}
}

func TestFineTuneUnsupportedCategoryFailsBeforeTraining(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.ModelCategory = models.ModelCategory("speech-synthesis")

	result := f.service.FineTuneModel(context.Background(), req)
	if result.Success {
		t.Fatal("expected failure for an unsupported category")
	}
	if f.trainer.trainCalls != 0 {
		t.Fatal("expected no training for an unsupported category")
	}
	if !strings.Contains(result.Error.Message, "unsupported model category") {
		t.Fatalf("unexpected error message: %q", result.Error.Message)
	}
}

func TestFineTuneEmptyTrainingDataFails(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.TrainingData = nil

	result := f.service.FineTuneModel(context.Background(), req)
	if result.Success {
		t.Fatal("expected failure for empty training data")
	}
	if f.trainer.trainCalls != 0 {
		t.Fatal("expected no training for empty data")
	}
}

func TestFineTuneFailsWhenAllRecordsDrop(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.TrainingData = []models.TrainingRecord{{"text": ""}, {"label": "x"}}

	result := f.service.FineTuneModel(context.Background(), req)
	if result.Success {
		t.Fatal("expected failure when every record drops")
	}
	if !strings.Contains(result.Error.Message, "no usable training examples") {
		t.Fatalf("unexpected error message: %q", result.Error.Message)
	}
}

func TestFineTuneCachingDisabledSkipsCache(t *testing.T) {
	f := newFixture(Settings{})
	off := false
	req := trainingRequest()
	req.CachingEnabled = &off

	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.cache.gets != 0 || f.cache.sets != 0 {
		t.Fatalf("expected the cache to stay untouched, gets=%d sets=%d", f.cache.gets, f.cache.sets)
	}
}

func TestFineTuneCanceledContextFailsRequest(t *testing.T) {
	f := newFixture(Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.service.FineTuneModel(ctx, trainingRequest())
	if result.Success {
		t.Fatal("expected failure on a canceled context")
	}
	if result.Error.Message != "request canceled" {
		t.Fatalf("unexpected error message: %q", result.Error.Message)
	}
}

func TestFineTuneTimeoutFailsRequest(t *testing.T) {
	f := newFixture(Settings{RequestTimeout: time.Nanosecond})
	time.Sleep(time.Millisecond)

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if result.Success {
		t.Fatal("expected failure on timeout")
	}
	if result.Error.Message != "request timed out" {
		t.Fatalf("unexpected error message: %q", result.Error.Message)
	}
}

func TestFineTuneRegistryLookupErrorFallsBackToTraining(t *testing.T) {
	f := newFixture(Settings{})
	f.registry.similarErr = errors.New("registry down")

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.trainer.trainCalls != 1 {
		t.Fatalf("expected training despite the lookup error, got %d calls", f.trainer.trainCalls)
	}
}

func TestFineTuneProbeFailureFallsBackToCloud(t *testing.T) {
	f := newFixture(Settings{})
	f.prober.err = errors.New("sensors offline")

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.Metadata.Mode != models.ModeCloud {
		t.Fatalf("expected cloud fallback, got %s", result.Metadata.Mode)
	}
}

func TestFineTuneExplicitModeSkipsProbe(t *testing.T) {
	f := newFixture(Settings{})
	req := trainingRequest()
	req.Mode = models.ModeCloud

	result := f.service.FineTuneModel(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.Metadata.Mode != models.ModeCloud {
		t.Fatalf("expected the requested mode, got %s", result.Metadata.Mode)
	}
	if f.prober.calls != 0 {
		t.Fatal("expected no hardware probe for an explicit mode")
	}
}

func TestSetOperationModeValidatesAndPins(t *testing.T) {
	f := newFixture(Settings{})

	if err := f.service.SetOperationMode(models.TrainingMode("warp")); err == nil {
		t.Fatal("expected error for an invalid mode")
	} else if !IsValidationError(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}

	if err := f.service.SetOperationMode(models.ModeHybrid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.service.OperationMode() != models.ModeHybrid {
		t.Fatalf("expected hybrid pinned, got %s", f.service.OperationMode())
	}

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if result.Metadata.Mode != models.ModeHybrid {
		t.Fatalf("expected the pinned mode, got %s", result.Metadata.Mode)
	}
	if f.prober.calls != 0 {
		t.Fatal("expected no hardware probe under a pinned mode")
	}
}

func TestFineTuneSharesConcurrentExecutions(t *testing.T) {
	f := newFixture(Settings{MaxConcurrentTrainings: 2})
	f.trainer.trainDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]models.FineTuningResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.service.FineTuneModel(context.Background(), trainingRequest())
		}(i)
	}
	wg.Wait()

	if f.trainer.trainCalls != 1 {
		t.Fatalf("expected one shared training run, got %d", f.trainer.trainCalls)
	}
	if results[0].ModelID != results[1].ModelID {
		t.Fatalf("expected both callers to get the same model, got %q and %q", results[0].ModelID, results[1].ModelID)
	}
}

func TestDeleteModelPurgesCachedResults(t *testing.T) {
	f := newFixture(Settings{})
	f.registry.deleteOK = true
	f.cache.entries["key-a"] = &models.FineTuningResult{ModelID: "ft-a"}
	f.cache.entries["key-b"] = &models.FineTuningResult{ModelID: "ft-b"}

	deleted, err := f.service.DeleteModel(context.Background(), "ft-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}
	if _, ok := f.cache.entries["key-a"]; ok {
		t.Fatal("expected the cached result for ft-a to be purged")
	}
	if _, ok := f.cache.entries["key-b"]; !ok {
		t.Fatal("expected unrelated cache entries to survive")
	}
}

func TestFineTuneCacheLookupErrorTreatedAsMiss(t *testing.T) {
	f := newFixture(Settings{})
	f.cache.getErr = errors.New("redis down")

	result := f.service.FineTuneModel(context.Background(), trainingRequest())
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if f.trainer.trainCalls != 1 {
		t.Fatalf("expected training on a cache error, got %d calls", f.trainer.trainCalls)
	}
}
