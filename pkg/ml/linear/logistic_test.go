package linear

import (
	"math"
	"testing"
)

func separableSet() ([][]float64, []float64) {
	samples := [][]float64{
		{2.0, 0.1}, {1.8, 0.2}, {2.2, 0.0}, {1.9, 0.3},
		{0.1, 2.0}, {0.2, 1.8}, {0.0, 2.2}, {0.3, 1.9},
	}
	labels := []float64{1, 1, 1, 1, 0, 0, 0, 0}
	return samples, labels
}

func TestTrainLogisticSeparatesClasses(t *testing.T) {
	samples, labels := separableSet()
	weights, metrics := TrainLogistic(samples, labels, Options{Epochs: 500, LearningRate: 0.5})

	if metrics.Accuracy != 1.0 {
		t.Fatalf("expected perfect accuracy on separable data, got %v", metrics.Accuracy)
	}
	if metrics.Loss <= 0 || metrics.Loss > 0.7 {
		t.Fatalf("expected a small positive loss, got %v", metrics.Loss)
	}
	if Predict(weights, []float64{2.1, 0.1}) < 0.5 {
		t.Fatal("expected a positive prediction for a positive-like sample")
	}
	if Predict(weights, []float64{0.1, 2.1}) >= 0.5 {
		t.Fatal("expected a negative prediction for a negative-like sample")
	}
}

func TestTrainLogisticEmptySet(t *testing.T) {
	weights, metrics := TrainLogistic(nil, nil, Options{})
	if len(weights.Coefficients) != 0 || metrics.Accuracy != 0 {
		t.Fatalf("expected zero values for an empty set, got %+v %+v", weights, metrics)
	}
}

func TestEvaluateCountsConfusionQuadrants(t *testing.T) {
	// Positive predictions iff the first feature is positive.
	weights := Weights{Coefficients: []float64{10, 0}}

	samples := [][]float64{{1, 0}, {1, 0}, {-1, 0}, {-1, 0}}
	labels := []float64{1, 0, 1, 0}
	m := Evaluate(weights, samples, labels)

	if m.Accuracy != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %v", m.Accuracy)
	}
	if m.Precision != 0.5 {
		t.Fatalf("expected precision 0.5, got %v", m.Precision)
	}
	if m.Recall != 0.5 {
		t.Fatalf("expected recall 0.5, got %v", m.Recall)
	}
	if m.F1 != 0.5 {
		t.Fatalf("expected F1 0.5, got %v", m.F1)
	}
}

func TestEvaluateEmptySet(t *testing.T) {
	m := Evaluate(Weights{}, nil, nil)
	if m != (Metrics{}) {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestPruneDropsSmallCoefficients(t *testing.T) {
	weights := Weights{Bias: 0.04, Coefficients: []float64{0.5, -0.01, 0.02, -0.8, 0.0}}

	pruned, dropped := Prune(weights, 0.05)
	if dropped != 3 {
		t.Fatalf("expected 3 dropped coefficients, got %d", dropped)
	}
	if pruned.NonZero() != 2 {
		t.Fatalf("expected 2 surviving coefficients, got %d", pruned.NonZero())
	}
	if pruned.Coefficients[0] != 0.5 || pruned.Coefficients[3] != -0.8 {
		t.Fatalf("expected large coefficients kept, got %v", pruned.Coefficients)
	}
	if pruned.Bias != 0.04 {
		t.Fatalf("expected the bias untouched, got %v", pruned.Bias)
	}
	// The input must not be mutated.
	if weights.Coefficients[1] != -0.01 {
		t.Fatal("expected the original weights untouched")
	}
}

func TestPruneZeroThresholdKeepsEverything(t *testing.T) {
	weights := Weights{Coefficients: []float64{0.001, -0.002}}
	pruned, dropped := Prune(weights, 0)
	if dropped != 0 {
		t.Fatalf("expected nothing dropped at threshold 0, got %d", dropped)
	}
	if math.Abs(pruned.Coefficients[0]-0.001) > 1e-12 {
		t.Fatalf("expected coefficients preserved, got %v", pruned.Coefficients)
	}
}
