package finetune

import (
	"testing"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

func requestWithRecords(n int) models.FineTuningRequest {
	data := make([]models.TrainingRecord, n)
	for i := range data {
		data[i] = models.TrainingRecord{"text": "x", "label": "y"}
	}
	return models.FineTuningRequest{ModelCategory: models.CategoryTextClassification, TrainingData: data}
}

func TestResolveModeSmallSetOnIdleMachine(t *testing.T) {
	hw := &models.HardwareSnapshot{CPUCores: 8, CPUUtilization: 0.40, MemoryAvailableMB: 18432}
	if got := ResolveMode(requestWithRecords(100), models.ModeAuto, hw); got != models.ModeLocal {
		t.Fatalf("expected local, got %s", got)
	}
}

func TestResolveModeMediumSetOnBusyMachine(t *testing.T) {
	hw := &models.HardwareSnapshot{CPUCores: 4, CPUUtilization: 0.75, MemoryAvailableMB: 5000}
	if got := ResolveMode(requestWithRecords(2000), models.ModeAuto, hw); got != models.ModeHybrid {
		t.Fatalf("expected hybrid, got %s", got)
	}
}

func TestResolveModeLargeSetAlwaysCloud(t *testing.T) {
	hw := &models.HardwareSnapshot{CPUCores: 64, CPUUtilization: 0.01, MemoryAvailableMB: 262144}
	if got := ResolveMode(requestWithRecords(50000), models.ModeAuto, hw); got != models.ModeCloud {
		t.Fatalf("expected cloud for a large dataset, got %s", got)
	}
}

func TestResolveModeTierBoundaries(t *testing.T) {
	// Local needs strictly fewer than 500 examples and strictly more than
	// 8192MB free.
	hw := &models.HardwareSnapshot{CPUCores: 6, CPUUtilization: 0.69, MemoryAvailableMB: 8193}
	if got := ResolveMode(requestWithRecords(499), models.ModeAuto, hw); got != models.ModeLocal {
		t.Fatalf("expected local at the boundary, got %s", got)
	}
	if got := ResolveMode(requestWithRecords(500), models.ModeAuto, hw); got == models.ModeLocal {
		t.Fatal("expected 500 examples to miss the local tier")
	}

	busy := &models.HardwareSnapshot{CPUCores: 6, CPUUtilization: 0.70, MemoryAvailableMB: 16384}
	if got := ResolveMode(requestWithRecords(100), models.ModeAuto, busy); got != models.ModeHybrid {
		t.Fatalf("expected 70%% utilization to fall through to hybrid, got %s", got)
	}
}

func TestResolveModeExplicitRequestWins(t *testing.T) {
	hw := &models.HardwareSnapshot{CPUCores: 8, CPUUtilization: 0.10, MemoryAvailableMB: 32768}
	req := requestWithRecords(10)
	req.Mode = models.ModeCloud
	if got := ResolveMode(req, models.ModeLocal, hw); got != models.ModeCloud {
		t.Fatalf("expected requested mode to win, got %s", got)
	}
}

func TestResolveModePinnedBeatsTable(t *testing.T) {
	hw := &models.HardwareSnapshot{CPUCores: 8, CPUUtilization: 0.10, MemoryAvailableMB: 32768}
	if got := ResolveMode(requestWithRecords(10), models.ModeHybrid, hw); got != models.ModeHybrid {
		t.Fatalf("expected pinned mode to win, got %s", got)
	}
}

func TestResolveModeWithoutHardwareReading(t *testing.T) {
	if got := ResolveMode(requestWithRecords(10), models.ModeAuto, nil); got != models.ModeCloud {
		t.Fatalf("expected cloud with no hardware reading, got %s", got)
	}
}

func TestResolveModeCountsValidationData(t *testing.T) {
	req := requestWithRecords(400)
	req.ValidationData = make([]models.TrainingRecord, 200)
	hw := &models.HardwareSnapshot{CPUCores: 8, CPUUtilization: 0.10, MemoryAvailableMB: 32768}
	if got := ResolveMode(req, models.ModeAuto, hw); got == models.ModeLocal {
		t.Fatal("expected validation records to count toward dataset size")
	}
}
