package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelforge-ai/platform/pkg/common/logger"
	"github.com/modelforge-ai/platform/pkg/common/models"
	"github.com/modelforge-ai/platform/pkg/ml/linear"
)

// Evaluator scores trained models against held-out data. Classification
// models are replayed through their stored weights; other categories report
// loss-derived estimates from the artifact.
type Evaluator struct {
	artifactDir string
}

func NewEvaluator(artifactDir string) *Evaluator {
	return &Evaluator{artifactDir: artifactDir}
}

// artifactView decodes the slice of the training artifact evaluation needs.
type artifactView struct {
	ModelID       string                 `json:"model_id"`
	Category      string                 `json:"category"`
	Weights       *linear.Weights        `json:"weights"`
	PositiveLabel string                 `json:"positive_label"`
	Metrics       models.TrainingMetrics `json:"metrics"`
}

func (e *Evaluator) EvaluateModel(ctx context.Context, modelID string, data []models.TrainingRecord, category models.ModelCategory) (*models.EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art, err := e.loadArtifact(modelID)
	if err != nil {
		return nil, err
	}

	result := &models.EvaluationResult{ModelID: modelID, Success: true}
	if category == models.CategoryTextClassification && art.Weights != nil {
		metrics, err := scoreClassifier(art, data)
		if err != nil {
			return nil, err
		}
		result.Metrics = metrics
	} else {
		result.Metrics = lossEstimates(category, art.Metrics)
	}

	logger.Log.WithFields(map[string]interface{}{
		"model_id": modelID,
		"category": category,
		"examples": len(data),
	}).Info("Model evaluated")
	return result, nil
}

func scoreClassifier(art *artifactView, data []models.TrainingRecord) (map[string]float64, error) {
	dim := len(art.Weights.Coefficients)
	samples := make([][]float64, 0, len(data))
	labels := make([]float64, 0, len(data))
	for _, record := range data {
		text, _ := record["text"].(string)
		label, _ := record["label"].(string)
		if text == "" || label == "" {
			continue
		}
		samples = append(samples, embed(text, dim))
		if label == art.PositiveLabel {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no usable evaluation examples for model %s", art.ModelID)
	}

	scored := linear.Evaluate(*art.Weights, samples, labels)
	return map[string]float64{
		"accuracy":  round3(scored.Accuracy),
		"precision": round3(scored.Precision),
		"recall":    round3(scored.Recall),
		"f1_score":  round3(scored.F1),
		"loss":      round3(scored.Loss),
	}, nil
}

// lossEstimates covers categories without a local scorer using the
// validation loss recorded at training time.
func lossEstimates(category models.ModelCategory, metrics models.TrainingMetrics) map[string]float64 {
	loss := metrics.ValidationLoss
	if loss <= 0 {
		loss = metrics.FinalLoss
	}
	if category == models.CategoryTextGeneration {
		return map[string]float64{
			"loss":       round3(loss),
			"perplexity": round3(math.Exp(loss)),
		}
	}
	return map[string]float64{
		"loss":     round3(loss),
		"accuracy": round3(1.0 / (1.0 + loss)),
	}
}

// embed must hash tokens exactly as the trainer does or the replayed
// predictions are meaningless.
func embed(text string, dim int) []float64 {
	vec := make([]float64, dim)
	tokens := strings.Fields(strings.ToLower(text))
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%dim]++
	}
	if len(tokens) > 0 {
		for i := range vec {
			vec[i] /= float64(len(tokens))
		}
	}
	return vec
}

func (e *Evaluator) loadArtifact(modelID string) (*artifactView, error) {
	payload, err := os.ReadFile(filepath.Join(e.artifactDir, fmt.Sprintf("%s.json", modelID)))
	if err != nil {
		return nil, fmt.Errorf("artifact for model %s not found: %w", modelID, err)
	}
	var art artifactView
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("corrupt artifact for model %s: %w", modelID, err)
	}
	return &art, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
