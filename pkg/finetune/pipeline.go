package finetune

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelforge-ai/platform/pkg/common/httpclient"
	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
	"github.com/modelforge-ai/platform/pkg/observability/metrics"
)

const retryBaseDelay = 200 * time.Millisecond

// process wraps one pipeline execution with timing, the trailing cache
// write and the terminal lifecycle event. cacheKey is empty when caching is
// disabled for the request.
func (s *Service) process(ctx context.Context, req models.FineTuningRequest, cacheKey string) models.FineTuningResult {
	start := time.Now().UTC()
	logger.Log.WithFields(map[string]interface{}{
		"category": string(req.ModelCategory),
		"purpose":  req.Purpose,
		"domain":   req.TargetDomain,
	}).Info("Processing fine-tuning request")

	result := s.run(ctx, req)
	result.Metadata.ProcessingTime = time.Since(start)

	if result.Success {
		if cacheKey != "" {
			if err := s.cache.Set(ctx, cacheKey, &result); err != nil {
				logger.Log.WithError(err).WithField("cache_key", cacheKey).Warn("Failed to cache fine-tuning result")
			}
		}
		s.publish("finetune.completed", map[string]interface{}{
			"model_id":       result.ModelID,
			"category":       string(result.ModelCategory),
			"mode":           string(result.Metadata.Mode),
			"existing_model": result.Metadata.ExistingModel,
			"processing_ms":  result.Metadata.ProcessingTime.Milliseconds(),
		})
		logger.Log.WithFields(map[string]interface{}{
			"model_id":       result.ModelID,
			"mode":           string(result.Metadata.Mode),
			"existing_model": result.Metadata.ExistingModel,
			"optimized":      result.Metadata.Optimized,
		}).Info("Fine-tuning request completed")
		return result
	}

	metrics.IncFineTuneFailure()
	message := ""
	if result.Error != nil {
		message = result.Error.Message
	}
	s.publish("finetune.failed", map[string]interface{}{
		"category": string(req.ModelCategory),
		"purpose":  req.Purpose,
		"error":    message,
	})
	return result
}

// run sequences the pipeline: mode resolution, existing-model lookup,
// preprocessing, parameter configuration, training, evaluation, the
// overfitting gate, registration and optional deployment.
func (s *Service) run(ctx context.Context, req models.FineTuningRequest) models.FineTuningResult {
	mode := s.resolveMode(ctx, req)

	existing := s.findExisting(ctx, req)
	if existing != nil && !req.ForceRetrain {
		if err := s.registry.RecordModelUsage(ctx, existing.ID); err != nil {
			logger.Log.WithError(err).WithField("model_id", existing.ID).Warn("Failed to record model usage")
		}
		metrics.IncModelReused()
		logger.Log.WithFields(map[string]interface{}{
			"model_id": existing.ID,
			"category": string(req.ModelCategory),
		}).Info("Reusing existing model")
		return s.reuseResult(req, existing, mode)
	}

	processed, err := PreprocessData(req.TrainingData, req.ModelCategory)
	if err != nil {
		return s.failureResult(req, mode, err)
	}
	if len(processed) == 0 {
		return s.failureResult(req, mode, ValidationError{reason: errNoUsableExamples})
	}

	params := ConfigureParameters(req.Parameters, req.ModelCategory, len(processed), mode, s.profile)

	output, err := s.train(ctx, req, processed, params, mode)
	if err != nil {
		metrics.IncTrainingFailure()
		return s.failureResult(req, mode, fmt.Errorf("training failed: %w", err))
	}

	evaluation := s.evaluate(ctx, output.ModelID, req)

	assessment := s.detector.DetectOverfitting(output.Metrics, evaluation)

	finalOutput := output
	optimized := false
	var warnings []models.Warning
	if assessment.IsOverfitting || len(req.Optimization) > 0 {
		optimizedOutput, err := s.optimize(ctx, req, output.ModelID, assessment)
		if err != nil {
			return s.failureResult(req, mode, fmt.Errorf("optimization failed: %w", err))
		}
		finalOutput = optimizedOutput
		optimized = true
		metrics.IncOptimizationApplied()
		if assessment.IsOverfitting {
			warnings = append(warnings, models.Warning{
				Code:    "overfitting_detected",
				Message: fmt.Sprintf("overfitting detected; optimization applied with pruning threshold %.2f", assessment.RecommendedPruningThreshold),
			})
		}
	}
	if evaluation.Error != "" {
		warnings = append(warnings, models.Warning{Code: "evaluation_failed", Message: evaluation.Error})
	}

	now := time.Now().UTC()
	metadata := models.ModelMetadata{
		ModelCategory:       req.ModelCategory,
		Purpose:             req.Purpose,
		TargetDomain:        req.TargetDomain,
		LearnerSkillLevel:   req.SkillLevel(),
		CreatedAt:           now,
		LastUsedAt:          now,
		TrainingDatasetSize: len(processed),
		Mode:                mode,
		Optimized:           optimized,
		Tags:                req.Tags,
	}
	if err := s.registry.RegisterModel(ctx, finalOutput.ModelID, metadata, *evaluation, finalOutput.ModelSize); err != nil {
		return s.failureResult(req, mode, fmt.Errorf("model registration failed: %w", err))
	}

	deployed := false
	if req.Deployment != nil {
		if err := s.deploy(ctx, finalOutput.ModelID, *req.Deployment); err != nil {
			metrics.IncDeploymentFailure()
			_ = s.registry.UpdateModelStatus(ctx, finalOutput.ModelID, models.ModelStatusDeployFailed, err.Error())
			failure := s.failureResult(req, mode, err)
			failure.Metadata.Registered = true
			failure.Metadata.Optimized = optimized
			failure.Warnings = warnings
			failure.Error.Detail = fmt.Sprintf("model %s remains registered and can be recovered from the registry", finalOutput.ModelID)
			return failure
		}
		deployed = true
		metrics.IncDeploymentCompleted()
		_ = s.registry.UpdateModelStatus(ctx, finalOutput.ModelID, models.ModelStatusDeployed(req.Deployment.Environment), "")
		s.publish("model.deployed", map[string]interface{}{
			"model_id":    finalOutput.ModelID,
			"environment": string(req.Deployment.Environment),
		})
	}

	return models.FineTuningResult{
		ModelID:       finalOutput.ModelID,
		ModelCategory: req.ModelCategory,
		Purpose:       req.Purpose,
		Success:       true,
		Metrics:       buildResultMetrics(evaluation, output, finalOutput, optimized),
		Warnings:      warnings,
		Metadata: models.ResultMetadata{
			CreatedAt:  now,
			LastUsedAt: now,
			Mode:       mode,
			Optimized:  optimized,
			Registered: true,
			Deployed:   deployed,
		},
	}
}

// resolveMode applies the precedence chain. The hardware probe only runs
// when the decision table is actually consulted.
func (s *Service) resolveMode(ctx context.Context, req models.FineTuningRequest) models.TrainingMode {
	s.mu.RLock()
	pinned := s.pinnedMode
	s.mu.RUnlock()

	if req.Mode.Concrete() || pinned.Concrete() {
		return ResolveMode(req, pinned, nil)
	}

	hw, err := s.hardware.Snapshot(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Hardware probe failed, falling through to cloud mode")
		hw = nil
	}
	return ResolveMode(req, pinned, hw)
}

func (s *Service) findExisting(ctx context.Context, req models.FineTuningRequest) *models.ModelInfo {
	existing, err := s.registry.FindSimilarModel(ctx, req.ModelCategory, req.Purpose, req.TargetDomain, req.SkillLevel())
	if err != nil {
		logger.Log.WithError(err).Warn("Registry lookup failed, proceeding with training")
		return nil
	}
	return existing
}

// train holds a concurrency slot for the duration of the run and retries
// transient trainer failures.
func (s *Service) train(ctx context.Context, req models.FineTuningRequest, data []models.TrainingRecord, params map[string]interface{}, mode models.TrainingMode) (*models.TrainingOutput, error) {
	select {
	case s.trainSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.trainSem }()

	metrics.IncTrainingRun()
	var output *models.TrainingOutput
	err := httpclient.RetryIf(ctx, s.maxAttempts, retryBaseDelay, func() error {
		trained, trainErr := s.trainer.TrainModel(ctx, req.ModelCategory, data, params, mode, req.ValidationData)
		if trainErr != nil {
			return trainErr
		}
		output = trained
		return nil
	}, httpclient.IsRetriable)
	return output, err
}

// evaluate never fails the request: an evaluator error is logged and folded
// into an unsuccessful evaluation with empty metrics.
func (s *Service) evaluate(ctx context.Context, modelID string, req models.FineTuningRequest) *models.EvaluationResult {
	var evaluation *models.EvaluationResult
	err := httpclient.RetryIf(ctx, s.maxAttempts, retryBaseDelay, func() error {
		res, evalErr := s.evaluator.EvaluateModel(ctx, modelID, req.EvaluationData, req.ModelCategory)
		if evalErr != nil {
			return evalErr
		}
		evaluation = res
		return nil
	}, httpclient.IsRetriable)
	if err != nil {
		metrics.IncEvaluationFailure()
		logger.Log.WithError(err).WithField("model_id", modelID).Warn("Evaluation failed, continuing without metrics")
		wrapped := EvaluationError{ModelID: modelID, reason: err}
		return &models.EvaluationResult{
			ModelID: modelID,
			Success: false,
			Metrics: map[string]float64{},
			Error:   wrapped.Error(),
		}
	}
	if evaluation.Metrics == nil {
		evaluation.Metrics = map[string]float64{}
	}
	return evaluation
}

func (s *Service) optimize(ctx context.Context, req models.FineTuningRequest, modelID string, assessment models.OverfittingAssessment) (*models.TrainingOutput, error) {
	options := make(map[string]interface{}, len(req.Optimization)+2)
	for key, value := range req.Optimization {
		options[key] = value
	}
	options["address_overfitting"] = assessment.IsOverfitting
	options["pruning_threshold"] = assessment.RecommendedPruningThreshold
	return s.trainer.OptimizeModel(ctx, modelID, options)
}

func (s *Service) deploy(ctx context.Context, modelID string, spec models.DeploymentSpec) error {
	var err error
	switch spec.Environment {
	case models.DeployLocal:
		err = s.trainer.DeployModelLocally(ctx, modelID, spec.Options)
	case models.DeployCloud:
		err = s.trainer.DeployModelToCloud(ctx, modelID, spec.Options)
	case models.DeployEdge:
		err = s.trainer.DeployModelToEdge(ctx, modelID, spec.Options)
	default:
		err = fmt.Errorf("unsupported deployment environment %q", spec.Environment)
	}
	if err != nil {
		return DeploymentError{ModelID: modelID, Environment: spec.Environment, reason: err}
	}
	return nil
}

func (s *Service) reuseResult(req models.FineTuningRequest, existing *models.ModelInfo, mode models.TrainingMode) models.FineTuningResult {
	now := time.Now().UTC()
	resultMetrics := make(map[string]float64, len(existing.EvalMetrics)+1)
	for key, value := range existing.EvalMetrics {
		resultMetrics[key] = value
	}
	if existing.ModelSize > 0 {
		resultMetrics["model_size"] = float64(existing.ModelSize)
	}

	return models.FineTuningResult{
		ModelID:       existing.ID,
		ModelCategory: req.ModelCategory,
		Purpose:       req.Purpose,
		Success:       true,
		Metrics:       resultMetrics,
		Metadata: models.ResultMetadata{
			CreatedAt:     now,
			LastUsedAt:    now,
			Mode:          mode,
			ExistingModel: true,
			Optimized:     existing.Metadata.Optimized,
			Registered:    true,
		},
	}
}

func (s *Service) failureResult(req models.FineTuningRequest, mode models.TrainingMode, err error) models.FineTuningResult {
	now := time.Now().UTC()
	info := &models.ErrorInfo{Message: err.Error()}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		info.Message = "request timed out"
		info.Detail = err.Error()
	case errors.Is(err, context.Canceled):
		info.Message = "request canceled"
		info.Detail = err.Error()
	}

	logger.Log.WithError(err).WithFields(map[string]interface{}{
		"category": string(req.ModelCategory),
		"purpose":  req.Purpose,
	}).Error("Fine-tuning request failed")

	return models.FineTuningResult{
		ModelCategory: req.ModelCategory,
		Purpose:       req.Purpose,
		Success:       false,
		Metrics:       map[string]float64{},
		Error:         info,
		Metadata: models.ResultMetadata{
			CreatedAt:  now,
			LastUsedAt: now,
			Mode:       mode,
		},
	}
}

func buildResultMetrics(evaluation *models.EvaluationResult, trained, final *models.TrainingOutput, optimized bool) map[string]float64 {
	resultMetrics := make(map[string]float64, len(evaluation.Metrics)+4)
	for key, value := range evaluation.Metrics {
		resultMetrics[key] = value
	}
	resultMetrics["final_loss"] = trained.Metrics.FinalLoss
	resultMetrics["validation_loss"] = trained.Metrics.ValidationLoss
	resultMetrics["model_size"] = float64(final.ModelSize)
	if optimized {
		resultMetrics["reduction_ratio"] = reductionRatio(trained.ModelSize, final.ModelSize)
	}
	return resultMetrics
}

// reductionRatio is 1 - optimized/original, or zero when the original size
// is unknown.
func reductionRatio(original, optimized int64) float64 {
	if original == 0 {
		return 0
	}
	return 1 - float64(optimized)/float64(original)
}
