package models

import (
	"time"
)

// ModelCategory identifies the kind of model a fine-tuning request targets.
// Categories form a closed set: preprocessing and parameter overrides are
// registered per category, never resolved by string fallthrough.
type ModelCategory string

const (
	CategoryTextClassification  ModelCategory = "text-classification"
	CategoryTextGeneration      ModelCategory = "text-generation"
	CategoryImageClassification ModelCategory = "image-classification"
	CategoryMultimodal          ModelCategory = "multimodal"
)

func (c ModelCategory) Valid() bool {
	switch c {
	case CategoryTextClassification, CategoryTextGeneration, CategoryImageClassification, CategoryMultimodal:
		return true
	}
	return false
}

// TrainingMode governs where training runs and how parameters are tuned for
// the available compute.
type TrainingMode string

const (
	ModeAuto   TrainingMode = "auto"
	ModeLocal  TrainingMode = "local"
	ModeHybrid TrainingMode = "hybrid"
	ModeCloud  TrainingMode = "cloud"
)

func (m TrainingMode) Valid() bool {
	switch m {
	case ModeAuto, ModeLocal, ModeHybrid, ModeCloud:
		return true
	}
	return false
}

// Concrete reports whether the mode names an actual execution target rather
// than the auto preference.
func (m TrainingMode) Concrete() bool {
	return m.Valid() && m != ModeAuto
}

// DeploymentEnvironment is where a registered model gets pushed.
type DeploymentEnvironment string

const (
	DeployLocal DeploymentEnvironment = "local"
	DeployCloud DeploymentEnvironment = "cloud"
	DeployEdge  DeploymentEnvironment = "edge"
)

func (e DeploymentEnvironment) Valid() bool {
	switch e {
	case DeployLocal, DeployCloud, DeployEdge:
		return true
	}
	return false
}

// Registry lifecycle statuses.
const (
	ModelStatusRegistered   = "registered"
	ModelStatusDeployFailed = "deploy_failed"
)

// ModelStatusDeployed names the status for a successful deployment.
func ModelStatusDeployed(env DeploymentEnvironment) string {
	return "deployed_" + string(env)
}

// TrainingRecord is one raw example as submitted by the caller. Field
// expectations depend on the model category.
type TrainingRecord map[string]interface{}

// LearnerProfile narrows a model to a target audience.
type LearnerProfile struct {
	SkillLevel string `json:"skill_level"`
	Language   string `json:"language,omitempty"`
}

// DeploymentSpec asks for the freshly registered model to be deployed.
type DeploymentSpec struct {
	Environment DeploymentEnvironment  `json:"environment"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// FineTuningRequest is the unit of work. Treated as immutable once submitted.
type FineTuningRequest struct {
	ModelCategory  ModelCategory          `json:"model_category"`
	Purpose        string                 `json:"purpose"`
	TargetDomain   string                 `json:"target_domain"`
	LearnerProfile *LearnerProfile        `json:"learner_profile,omitempty"`
	TrainingData   []TrainingRecord       `json:"training_data"`
	ValidationData []TrainingRecord       `json:"validation_data,omitempty"`
	EvaluationData []TrainingRecord       `json:"evaluation_data,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	Mode           TrainingMode           `json:"mode,omitempty"`
	ForceRetrain   bool                   `json:"force_retrain,omitempty"`
	CachingEnabled *bool                  `json:"caching_enabled,omitempty"`
	Optimization   map[string]interface{} `json:"optimization,omitempty"`
	Deployment     *DeploymentSpec        `json:"deployment,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
}

// CachingOn resolves the optional caching flag; absent means enabled.
func (r FineTuningRequest) CachingOn() bool {
	return r.CachingEnabled == nil || *r.CachingEnabled
}

// SkillLevel returns the learner skill level, or "any" when no profile was
// supplied. The value participates in cache keys and registry matching.
func (r FineTuningRequest) SkillLevel() string {
	if r.LearnerProfile == nil || r.LearnerProfile.SkillLevel == "" {
		return "any"
	}
	return r.LearnerProfile.SkillLevel
}

// DatasetSize is the combined training plus validation example count used by
// mode resolution.
func (r FineTuningRequest) DatasetSize() int {
	return len(r.TrainingData) + len(r.ValidationData)
}

// Warning is a non-fatal note attached to a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorInfo is the structured error carried by a failed result.
type ErrorInfo struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ResultMetadata records how a result was produced.
type ResultMetadata struct {
	CreatedAt      time.Time     `json:"created_at"`
	LastUsedAt     time.Time     `json:"last_used_at"`
	Mode           TrainingMode  `json:"mode"`
	ExistingModel  bool          `json:"existing_model"`
	ProcessingTime time.Duration `json:"processing_time"`
	Optimized      bool          `json:"optimized"`
	Registered     bool          `json:"registered"`
	Deployed       bool          `json:"deployed"`
}

// FineTuningResult is the outcome of one request. Success=false implies Error
// is set and ModelID is empty; Success=true implies ModelID is set. When
// deployment fails after registration, Success is false but
// Metadata.Registered stays true and Error.Detail names the registered model,
// so callers can still recover it from the registry.
type FineTuningResult struct {
	ModelID       string             `json:"model_id"`
	ModelCategory ModelCategory      `json:"model_category"`
	Purpose       string             `json:"purpose"`
	Success       bool               `json:"success"`
	Metrics       map[string]float64 `json:"metrics"`
	Warnings      []Warning          `json:"warnings,omitempty"`
	Error         *ErrorInfo         `json:"error,omitempty"`
	Metadata      ResultMetadata     `json:"metadata"`
}

// ModelMetadata is the registry record handed over at registration time.
type ModelMetadata struct {
	ModelCategory       ModelCategory `json:"model_category"`
	Purpose             string        `json:"purpose"`
	TargetDomain        string        `json:"target_domain"`
	LearnerSkillLevel   string        `json:"learner_skill_level"`
	CreatedAt           time.Time     `json:"created_at"`
	LastUsedAt          time.Time     `json:"last_used_at"`
	TrainingDatasetSize int           `json:"training_dataset_size"`
	Mode                TrainingMode  `json:"mode"`
	Optimized           bool          `json:"optimized"`
	Tags                []string      `json:"tags,omitempty"`
}

// ModelInfo is the registry's full view of one model.
type ModelInfo struct {
	ID            string             `json:"id"`
	Metadata      ModelMetadata      `json:"metadata"`
	Status        string             `json:"status"`
	StatusDetails string             `json:"status_details,omitempty"`
	ModelSize     int64              `json:"model_size"`
	EvalMetrics   map[string]float64 `json:"eval_metrics,omitempty"`
}

// ModelFilters narrows registry listings.
type ModelFilters struct {
	Category     ModelCategory
	Purpose      string
	TargetDomain string
	Mode         TrainingMode
	Optimized    *bool
	Limit        int
}

// GPUInfo describes an available accelerator.
type GPUInfo struct {
	Model    string `json:"model"`
	MemoryMB int    `json:"memory_mb"`
}

// ThermalReadings are point-in-time temperatures.
type ThermalReadings struct {
	CPUCelsius float64 `json:"cpu_celsius"`
	GPUCelsius float64 `json:"gpu_celsius,omitempty"`
}

// HardwareSnapshot is a point-in-time reading of local compute headroom.
// Utilization figures are fractions in [0,1]; memory figures are megabytes.
type HardwareSnapshot struct {
	CPUCores          int              `json:"cpu_cores"`
	CPUUtilization    float64          `json:"cpu_utilization"`
	MemoryTotalMB     float64          `json:"memory_total_mb"`
	MemoryAvailableMB float64          `json:"memory_available_mb"`
	MemoryUtilization float64          `json:"memory_utilization"`
	GPU               *GPUInfo         `json:"gpu,omitempty"`
	Thermal           *ThermalReadings `json:"thermal,omitempty"`
}

// TrainingMetrics are the loss figures a training run reports.
type TrainingMetrics struct {
	FinalLoss      float64 `json:"final_loss"`
	ValidationLoss float64 `json:"validation_loss"`
}

// TrainingOutput is what the trainer and the optimizer hand back.
type TrainingOutput struct {
	ModelID   string          `json:"model_id"`
	ModelSize int64           `json:"model_size"`
	Metrics   TrainingMetrics `json:"training_metrics"`
}

// EvaluationResult is the evaluator's verdict on a trained model.
type EvaluationResult struct {
	ModelID string             `json:"model_id"`
	Success bool               `json:"success"`
	Metrics map[string]float64 `json:"metrics"`
	Error   string             `json:"error,omitempty"`
}

// OverfittingAssessment is the detector's reading of a finished run.
type OverfittingAssessment struct {
	IsOverfitting               bool    `json:"is_overfitting"`
	RecommendedPruningThreshold float64 `json:"recommended_pruning_threshold"`
}

// Event is the envelope published to and consumed from Kafka.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // finetune.completed, finetune.failed, model.deployed, model.deleted
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
