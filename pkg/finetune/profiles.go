package finetune

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

// TuningProfile carries the static layers of the parameter merge: global
// defaults plus per-category overrides. Dataset- and mode-dependent
// adjustments live in code, not in the profile.
type TuningProfile struct {
	Defaults   map[string]interface{}            `yaml:"defaults" json:"defaults"`
	Categories map[string]map[string]interface{} `yaml:"categories" json:"categories"`
}

// LoadProfile reads a tuning profile from a YAML file. An empty path yields
// the built-in profile.
func LoadProfile(path string) (TuningProfile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultProfile(), err
	}
	var profile TuningProfile
	if err := yaml.Unmarshal(content, &profile); err != nil {
		return TuningProfile{}, err
	}
	if len(profile.Defaults) == 0 {
		return TuningProfile{}, fmt.Errorf("tuning profile has no defaults")
	}
	return profile, nil
}

// CategoryOverrides returns the static overrides for a category, or nil.
func (p TuningProfile) CategoryOverrides(category models.ModelCategory) map[string]interface{} {
	if p.Categories == nil {
		return nil
	}
	return p.Categories[string(category)]
}

func DefaultProfile() TuningProfile {
	return TuningProfile{
		Defaults: map[string]interface{}{
			"epochs":        3,
			"batch_size":    8,
			"learning_rate": 2e-5,
			"warmup_steps":  100,
			"weight_decay":  0.01,
		},
		Categories: map[string]map[string]interface{}{
			string(models.CategoryTextGeneration): {
				"learning_rate":       1e-5,
				"max_sequence_length": 512,
			},
			string(models.CategoryImageClassification): {
				"image_size": 224,
			},
			string(models.CategoryMultimodal): {
				"max_sequence_length": 256,
				"image_size":          224,
			},
		},
	}
}
