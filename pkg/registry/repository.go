package registry

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

var ErrModelNotFound = errors.New("model not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ModelRecord{})
}

// FindSimilarModel returns the most recently used model matching the
// request's semantic identity, or nil when none exists.
func (r *Repository) FindSimilarModel(ctx context.Context, category models.ModelCategory, purpose, targetDomain, learnerLevel string) (*models.ModelInfo, error) {
	var record ModelRecord
	result := r.db.WithContext(ctx).
		Where("category = ? AND purpose = ? AND target_domain = ? AND learner_skill_level = ?",
			string(category), purpose, targetDomain, learnerLevel).
		Order("last_used_at desc").
		First(&record)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	info := toDomain(&record)
	return &info, nil
}

func (r *Repository) RecordModelUsage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&ModelRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_used_at": time.Now().UTC(),
		"usage_count":  gorm.Expr("usage_count + 1"),
	}).Error
}

func (r *Repository) RegisterModel(ctx context.Context, id string, metadata models.ModelMetadata, evaluation models.EvaluationResult, size int64) error {
	record := &ModelRecord{
		ID:                id,
		Category:          string(metadata.ModelCategory),
		Purpose:           metadata.Purpose,
		TargetDomain:      metadata.TargetDomain,
		LearnerSkillLevel: metadata.LearnerSkillLevel,
		Mode:              string(metadata.Mode),
		DatasetSize:       metadata.TrainingDatasetSize,
		Optimized:         metadata.Optimized,
		Tags:              datatypes.NewJSONSlice(metadata.Tags),
		Status:            models.ModelStatusRegistered,
		ModelSize:         size,
		EvalMetrics:       metricsToJSON(evaluation.Metrics),
		CreatedAt:         metadata.CreatedAt,
		LastUsedAt:        metadata.LastUsedAt,
	}
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *Repository) UpdateModelStatus(ctx context.Context, id, status, details string) error {
	return r.db.WithContext(ctx).Model(&ModelRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         status,
		"status_details": details,
	}).Error
}

func (r *Repository) GetModelInfo(ctx context.Context, id string) (*models.ModelInfo, error) {
	var record ModelRecord
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrModelNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	info := toDomain(&record)
	return &info, nil
}

func (r *Repository) ListModels(ctx context.Context, filters models.ModelFilters) ([]models.ModelInfo, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&ModelRecord{})
	if filters.Category != "" {
		query = query.Where("category = ?", string(filters.Category))
	}
	if filters.Purpose != "" {
		query = query.Where("purpose = ?", filters.Purpose)
	}
	if filters.TargetDomain != "" {
		query = query.Where("target_domain = ?", filters.TargetDomain)
	}
	if filters.Mode != "" {
		query = query.Where("mode = ?", string(filters.Mode))
	}
	if filters.Optimized != nil {
		query = query.Where("optimized = ?", *filters.Optimized)
	}

	var records []ModelRecord
	result := query.Order("created_at desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	infos := make([]models.ModelInfo, 0, len(records))
	for i := range records {
		infos = append(infos, toDomain(&records[i]))
	}
	return infos, nil
}

// DeleteModel reports whether a row was actually removed.
func (r *Repository) DeleteModel(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&ModelRecord{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func toDomain(record *ModelRecord) models.ModelInfo {
	info := models.ModelInfo{
		ID: record.ID,
		Metadata: models.ModelMetadata{
			ModelCategory:       models.ModelCategory(record.Category),
			Purpose:             record.Purpose,
			TargetDomain:        record.TargetDomain,
			LearnerSkillLevel:   record.LearnerSkillLevel,
			CreatedAt:           record.CreatedAt,
			LastUsedAt:          record.LastUsedAt,
			TrainingDatasetSize: record.DatasetSize,
			Mode:                models.TrainingMode(record.Mode),
			Optimized:           record.Optimized,
			Tags:                []string(record.Tags),
		},
		Status:        record.Status,
		StatusDetails: record.StatusDetails,
		ModelSize:     record.ModelSize,
	}
	if record.EvalMetrics != nil {
		info.EvalMetrics = metricsFromJSON(record.EvalMetrics)
	}
	return info
}

func metricsToJSON(metrics map[string]float64) datatypes.JSONMap {
	if metrics == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(metrics))
	for key, value := range metrics {
		out[key] = value
	}
	return out
}

func metricsFromJSON(raw datatypes.JSONMap) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case float64:
			out[key] = v
		case int:
			out[key] = float64(v)
		case int64:
			out[key] = float64(v)
		}
	}
	return out
}
