package registry

import (
	"time"

	"gorm.io/datatypes"
)

type ModelRecord struct {
	ID                string                      `gorm:"primaryKey;column:id"`
	Category          string                      `gorm:"column:category;index:idx_models_similarity"`
	Purpose           string                      `gorm:"column:purpose;index:idx_models_similarity"`
	TargetDomain      string                      `gorm:"column:target_domain;index:idx_models_similarity"`
	LearnerSkillLevel string                      `gorm:"column:learner_skill_level;index:idx_models_similarity"`
	Mode              string                      `gorm:"column:mode"`
	DatasetSize       int                         `gorm:"column:dataset_size"`
	Optimized         bool                        `gorm:"column:optimized"`
	Tags              datatypes.JSONSlice[string] `gorm:"column:tags"`
	Status            string                      `gorm:"column:status"`
	StatusDetails     string                      `gorm:"column:status_details"`
	ModelSize         int64                       `gorm:"column:model_size"`
	EvalMetrics       datatypes.JSONMap           `gorm:"column:eval_metrics"`
	UsageCount        int64                       `gorm:"column:usage_count"`
	CreatedAt         time.Time                   `gorm:"column:created_at"`
	LastUsedAt        time.Time                   `gorm:"column:last_used_at"`
}

func (ModelRecord) TableName() string {
	return "registered_models"
}
