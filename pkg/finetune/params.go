package finetune

import (
	"github.com/modelforge-ai/platform/pkg/common/models"
)

// smallDatasetThreshold marks the point below which text classification
// switches to smaller batches and more epochs.
const smallDatasetThreshold = 500

// categoryAdjustment tweaks parameters based on the processed dataset size.
type categoryAdjustment func(params map[string]interface{}, datasetSize int)

var categoryAdjustments = map[models.ModelCategory]categoryAdjustment{
	models.CategoryTextClassification: func(params map[string]interface{}, datasetSize int) {
		if datasetSize < smallDatasetThreshold {
			params["batch_size"] = 4
			params["epochs"] = 5
		}
	},
}

// modeAdjustment tailors parameters to the resolved execution mode.
type modeAdjustment func(params map[string]interface{})

var modeAdjustments = map[models.TrainingMode]modeAdjustment{
	models.ModeLocal: func(params map[string]interface{}) {
		if batch, ok := intParam(params, "batch_size"); ok && batch > 4 {
			params["batch_size"] = 4
		}
		params["mixed_precision"] = true
		params["gradient_accumulation_steps"] = 4
	},
	models.ModeHybrid: func(params map[string]interface{}) {
		params["offload_optimizer"] = true
		params["gradient_checkpointing"] = true
	},
	models.ModeCloud: func(params map[string]interface{}) {
		if batch, ok := intParam(params, "batch_size"); ok {
			params["batch_size"] = batch * 2
		}
	},
}

// ConfigureParameters merges training parameters with fixed precedence,
// lowest first: profile defaults, category overrides, dataset-size
// adjustments, mode adjustments, then user parameters, which always win
// per field.
func ConfigureParameters(user map[string]interface{}, category models.ModelCategory, datasetSize int, mode models.TrainingMode, profile TuningProfile) map[string]interface{} {
	params := make(map[string]interface{})
	mergeParams(params, profile.Defaults)
	mergeParams(params, profile.CategoryOverrides(category))

	if adjust, ok := categoryAdjustments[category]; ok {
		adjust(params, datasetSize)
	}
	if adjust, ok := modeAdjustments[mode]; ok {
		adjust(params)
	}

	mergeParams(params, user)
	return params
}

func mergeParams(dst map[string]interface{}, src map[string]interface{}) {
	for key, value := range src {
		dst[key] = value
	}
}

// intParam reads a numeric parameter regardless of how it was decoded.
// YAML yields int, JSON yields float64.
func intParam(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
