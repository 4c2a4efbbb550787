package linear

import "math"

type Options struct {
	Epochs       int
	LearningRate float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// NonZero counts coefficients that survived pruning.
func (w Weights) NonZero() int {
	var n int
	for _, c := range w.Coefficients {
		if c != 0 {
			n++
		}
	}
	return n
}

type Metrics struct {
	Loss      float64
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics) {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			prediction := sigmoid(dot(weights, sample) + bias)
			error := prediction - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += error * sample[j]
			}
			biasGrad += error
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * grad[j] / float64(n)
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	trained := Weights{Bias: bias, Coefficients: weights}
	return trained, Evaluate(trained, samples, labels)
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// Evaluate scores weights against a labeled set. Precision, recall and F1
// treat label 1 as the positive class; an empty set yields zero metrics.
func Evaluate(weights Weights, samples [][]float64, labels []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}

	var loss float64
	var correct, tp, fp, fn int
	for i, sample := range samples {
		prediction := Predict(weights, sample)
		loss += -labels[i]*math.Log(prediction+1e-9) - (1-labels[i])*math.Log(1-prediction+1e-9)
		positive := prediction >= 0.5
		switch {
		case positive && labels[i] == 1:
			correct++
			tp++
		case positive && labels[i] != 1:
			fp++
		case !positive && labels[i] == 1:
			fn++
		default:
			correct++
		}
	}

	m := Metrics{
		Loss:     loss / float64(len(samples)),
		Accuracy: float64(correct) / float64(len(samples)),
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// Prune zeroes coefficients whose magnitude falls below threshold and
// reports how many were dropped. The bias is never pruned.
func Prune(weights Weights, threshold float64) (Weights, int) {
	pruned := Weights{Bias: weights.Bias, Coefficients: make([]float64, len(weights.Coefficients))}
	var dropped int
	for i, c := range weights.Coefficients {
		if math.Abs(c) < threshold {
			dropped++
			continue
		}
		pruned.Coefficients[i] = c
	}
	return pruned, dropped
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
