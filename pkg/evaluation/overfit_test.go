package evaluation

import (
	"testing"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

func TestDetectOverfittingBelowGap(t *testing.T) {
	d := NewDetector()
	got := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.30, ValidationLoss: 0.38}, nil)
	if got.IsOverfitting {
		t.Fatalf("expected no overfitting for a 0.08 gap, got %+v", got)
	}
	if got.RecommendedPruningThreshold != 0 {
		t.Fatalf("expected no threshold recommendation, got %v", got.RecommendedPruningThreshold)
	}
}

func TestDetectOverfittingAboveGap(t *testing.T) {
	d := NewDetector()
	got := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.20, ValidationLoss: 0.50}, nil)
	if !got.IsOverfitting {
		t.Fatal("expected overfitting for a 0.3 gap")
	}
	if got.RecommendedPruningThreshold != 0.075 {
		t.Fatalf("expected threshold 0.075 for a 0.3 gap, got %v", got.RecommendedPruningThreshold)
	}
}

func TestDetectOverfittingThresholdClamps(t *testing.T) {
	d := NewDetector()

	mild := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.30, ValidationLoss: 0.42}, nil)
	if !mild.IsOverfitting {
		t.Fatalf("expected overfitting just past the gap, got %+v", mild)
	}
	if mild.RecommendedPruningThreshold != minPruningThreshold {
		t.Fatalf("expected the lower clamp, got %v", mild.RecommendedPruningThreshold)
	}

	severe := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.1, ValidationLoss: 2.5}, nil)
	if severe.RecommendedPruningThreshold != maxPruningThreshold {
		t.Fatalf("expected the upper clamp, got %v", severe.RecommendedPruningThreshold)
	}
}

func TestDetectOverfittingUsesWorseEvaluationLoss(t *testing.T) {
	d := NewDetector()
	evaluation := &models.EvaluationResult{Success: true, Metrics: map[string]float64{"loss": 0.60}}

	got := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.30, ValidationLoss: 0.32}, evaluation)
	if !got.IsOverfitting {
		t.Fatal("expected the evaluation loss to expose the gap")
	}
}

func TestDetectOverfittingIgnoresFailedEvaluation(t *testing.T) {
	d := NewDetector()
	evaluation := &models.EvaluationResult{Success: false, Metrics: map[string]float64{"loss": 5.0}}

	got := d.DetectOverfitting(models.TrainingMetrics{FinalLoss: 0.30, ValidationLoss: 0.32}, evaluation)
	if got.IsOverfitting {
		t.Fatal("expected a failed evaluation to be ignored")
	}
}
