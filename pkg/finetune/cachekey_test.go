package finetune

import (
	"strings"
	"testing"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

func sampleRequest() models.FineTuningRequest {
	return models.FineTuningRequest{
		ModelCategory:  models.CategoryTextClassification,
		Purpose:        "sentiment",
		TargetDomain:   "support-tickets",
		LearnerProfile: &models.LearnerProfile{SkillLevel: "expert"},
		TrainingData: []models.TrainingRecord{
			{"text": "great product", "label": "positive"},
			{"text": "does not work", "label": "negative"},
		},
	}
}

func TestBuildCacheKeyDeterministic(t *testing.T) {
	first := BuildCacheKey(sampleRequest())
	second := BuildCacheKey(sampleRequest())
	if first != second {
		t.Fatalf("expected identical keys, got %q and %q", first, second)
	}

	parts := strings.Split(first, "|")
	if len(parts) != 5 {
		t.Fatalf("expected 5 key segments, got %d in %q", len(parts), first)
	}
	if parts[0] != "text-classification" || parts[1] != "sentiment" || parts[2] != "support-tickets" || parts[3] != "expert" {
		t.Fatalf("unexpected key segments: %q", first)
	}
}

func TestBuildCacheKeySkillLevelDefaultsToAny(t *testing.T) {
	req := sampleRequest()
	req.LearnerProfile = nil
	key := BuildCacheKey(req)
	if !strings.Contains(key, "|any|") {
		t.Fatalf("expected skill segment to default to any, got %q", key)
	}
}

func TestBuildCacheKeyEmptyData(t *testing.T) {
	req := sampleRequest()
	req.TrainingData = nil
	key := BuildCacheKey(req)
	if !strings.HasSuffix(key, "|0_0_0") {
		t.Fatalf("expected empty-data fingerprint, got %q", key)
	}
}

func TestBuildCacheKeyDistinguishesData(t *testing.T) {
	base := BuildCacheKey(sampleRequest())

	changed := sampleRequest()
	changed.TrainingData[1] = models.TrainingRecord{"text": "does not work", "label": "neutral"}
	if BuildCacheKey(changed) == base {
		t.Fatal("expected changed training data to change the key")
	}
}

func TestBuildCacheKeySamplesLargeDatasets(t *testing.T) {
	records := func() []models.TrainingRecord {
		data := make([]models.TrainingRecord, 10)
		for i := range data {
			data[i] = models.TrainingRecord{"t": "a"}
		}
		return data
	}

	base := BuildCacheKey(models.FineTuningRequest{ModelCategory: models.CategoryTextClassification, TrainingData: records()})

	// Ten records sample every second one, so index 1 never lands in the
	// fingerprint.
	unsampled := records()
	unsampled[1] = models.TrainingRecord{"t": "b"}
	if got := BuildCacheKey(models.FineTuningRequest{ModelCategory: models.CategoryTextClassification, TrainingData: unsampled}); got != base {
		t.Fatalf("expected unsampled change to keep the key, got %q vs %q", got, base)
	}

	sampled := records()
	sampled[0] = models.TrainingRecord{"t": "b"}
	if got := BuildCacheKey(models.FineTuningRequest{ModelCategory: models.CategoryTextClassification, TrainingData: sampled}); got == base {
		t.Fatal("expected sampled change to change the key")
	}
}

func TestDataFingerprintTruncatesLongSamples(t *testing.T) {
	long := func(tail string) []models.TrainingRecord {
		return []models.TrainingRecord{{"text": strings.Repeat("a", 200) + tail}}
	}
	if dataFingerprint(long("X")) != dataFingerprint(long("Y")) {
		t.Fatal("expected content beyond the truncation cap to be ignored")
	}
}

func TestSimpleHashNonNegative(t *testing.T) {
	if got := simpleHash(""); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
	// Long inputs overflow int32 repeatedly; the result must still be
	// reported as an absolute value.
	if got := simpleHash(strings.Repeat("zebra", 100)); got < 0 {
		t.Fatalf("expected non-negative hash, got %d", got)
	}
}
