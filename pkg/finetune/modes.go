package finetune

import (
	"github.com/modelforge-ai/platform/pkg/common/models"
)

// Thresholds for the hardware-aware mode decision table. Tiers are checked
// in order and the first match wins.
const (
	localMaxExamples = 500
	localMinCores    = 6
	localMaxCPUUtil  = 0.7
	localMinFreeMB   = 8192

	hybridMaxExamples = 5000
	hybridMinCores    = 4
	hybridMaxCPUUtil  = 0.8
	hybridMinFreeMB   = 4096
)

// ResolveMode picks the concrete execution mode for a request. Precedence:
// an explicit non-auto request mode, then the pinned operation mode, then
// the decision table over dataset size and hardware headroom. Never returns
// auto; with no hardware reading the table falls through to cloud.
func ResolveMode(req models.FineTuningRequest, pinned models.TrainingMode, hw *models.HardwareSnapshot) models.TrainingMode {
	if req.Mode.Concrete() {
		return req.Mode
	}
	if pinned.Concrete() {
		return pinned
	}

	size := req.DatasetSize()
	if hw != nil {
		if size < localMaxExamples && hw.CPUCores >= localMinCores &&
			hw.CPUUtilization < localMaxCPUUtil && hw.MemoryAvailableMB > localMinFreeMB {
			return models.ModeLocal
		}
		if size < hybridMaxExamples && hw.CPUCores >= hybridMinCores &&
			hw.CPUUtilization < hybridMaxCPUUtil && hw.MemoryAvailableMB > hybridMinFreeMB {
			return models.ModeHybrid
		}
	}
	return models.ModeCloud
}
