package finetune

import (
	"fmt"
	"strings"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

// recordFilter normalizes one raw example, or rejects it.
type recordFilter func(models.TrainingRecord) (models.TrainingRecord, bool)

// Per-category preprocessing, registered in a closed table so an unknown
// category fails loudly instead of falling through.
var recordFilters = map[models.ModelCategory]recordFilter{
	models.CategoryTextClassification:  filterTextClassification,
	models.CategoryTextGeneration:      filterTextGeneration,
	models.CategoryImageClassification: filterImageClassification,
	models.CategoryMultimodal:          filterMultimodal,
}

// PreprocessData validates and normalizes raw examples for a category.
// An empty input set or an unknown category is a validation error; records
// that fail the category filter are dropped silently.
func PreprocessData(records []models.TrainingRecord, category models.ModelCategory) ([]models.TrainingRecord, error) {
	if len(records) == 0 {
		return nil, ValidationError{reason: errEmptyDataset}
	}

	filter, ok := recordFilters[category]
	if !ok {
		return nil, ValidationError{reason: fmt.Errorf("%w: %q", errUnsupportedCategory, category)}
	}

	processed := make([]models.TrainingRecord, 0, len(records))
	for _, record := range records {
		if normalized, keep := filter(record); keep {
			processed = append(processed, normalized)
		}
	}
	return processed, nil
}

func filterTextClassification(record models.TrainingRecord) (models.TrainingRecord, bool) {
	text, ok := stringField(record, "text")
	if !ok {
		return nil, false
	}
	label, ok := labelField(record, "label")
	if !ok {
		return nil, false
	}
	return models.TrainingRecord{"text": text, "label": label}, true
}

func filterTextGeneration(record models.TrainingRecord) (models.TrainingRecord, bool) {
	prompt, ok := stringField(record, "prompt")
	if !ok {
		return nil, false
	}
	completion, ok := stringField(record, "completion")
	if !ok {
		return nil, false
	}
	return models.TrainingRecord{"prompt": prompt, "completion": completion}, true
}

func filterImageClassification(record models.TrainingRecord) (models.TrainingRecord, bool) {
	image, ok := stringField(record, "image")
	if !ok {
		return nil, false
	}
	label, ok := labelField(record, "label")
	if !ok {
		return nil, false
	}
	return models.TrainingRecord{"image": image, "label": label}, true
}

func filterMultimodal(record models.TrainingRecord) (models.TrainingRecord, bool) {
	label, ok := labelField(record, "label")
	if !ok {
		return nil, false
	}

	normalized := models.TrainingRecord{"label": label}
	if text, ok := stringField(record, "text"); ok {
		normalized["text"] = text
	}
	if image, ok := stringField(record, "image"); ok {
		normalized["image"] = image
	}
	// At least one modality must survive.
	if len(normalized) == 1 {
		return nil, false
	}
	return normalized, true
}

// stringField extracts a non-empty trimmed string field.
func stringField(record models.TrainingRecord, key string) (string, bool) {
	raw, ok := record[key]
	if !ok {
		return "", false
	}
	str, ok := raw.(string)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(str)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// labelField accepts any defined label value and coerces it to a string.
func labelField(record models.TrainingRecord, key string) (string, bool) {
	raw, ok := record[key]
	if !ok || raw == nil {
		return "", false
	}
	if str, isStr := raw.(string); isStr {
		trimmed := strings.TrimSpace(str)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	}
	return fmt.Sprintf("%v", raw), true
}
