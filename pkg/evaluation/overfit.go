package evaluation

import (
	"github.com/modelforge-ai/platform/pkg/common/models"
)

// lossGapThreshold is the spread between held-out and training loss beyond
// which a model counts as overfit.
const lossGapThreshold = 0.1

const (
	minPruningThreshold = 0.05
	maxPruningThreshold = 0.5
)

// Detector flags overfitting from the spread between training loss and
// held-out loss. It is a pure heuristic and never errors.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

func (d *Detector) DetectOverfitting(training models.TrainingMetrics, evaluation *models.EvaluationResult) models.OverfittingAssessment {
	heldOut := training.ValidationLoss
	if evaluation != nil && evaluation.Success {
		if loss, ok := evaluation.Metrics["loss"]; ok && loss > heldOut {
			heldOut = loss
		}
	}

	gap := heldOut - training.FinalLoss
	if gap <= lossGapThreshold {
		return models.OverfittingAssessment{}
	}

	threshold := gap / 4
	if threshold < minPruningThreshold {
		threshold = minPruningThreshold
	}
	if threshold > maxPruningThreshold {
		threshold = maxPruningThreshold
	}
	return models.OverfittingAssessment{
		IsOverfitting:               true,
		RecommendedPruningThreshold: threshold,
	}
}
