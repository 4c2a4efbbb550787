package finetune

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/modelforge-ai/platform/pkg/common/models"
)

const (
	fingerprintSampleCount = 5
	fingerprintMaxChars    = 100
)

// BuildCacheKey derives the deterministic cache key for a request. Two
// requests agree on the key exactly when they agree on category, purpose,
// target domain, learner skill level and the training-data fingerprint.
func BuildCacheKey(req models.FineTuningRequest) string {
	return strings.Join([]string{
		string(req.ModelCategory),
		req.Purpose,
		req.TargetDomain,
		req.SkillLevel(),
		dataFingerprint(req.TrainingData),
	}, "|")
}

// dataFingerprint summarizes a training set as {count}_{sampleLen}_{hash}.
// It samples up to five evenly spaced records, serializes them with sorted
// keys, strips whitespace and truncates before hashing, so the fingerprint
// stays cheap on arbitrarily large datasets.
func dataFingerprint(data []models.TrainingRecord) string {
	if len(data) == 0 {
		return "0_0_0"
	}

	sampled := sampleRecords(data, fingerprintSampleCount)
	serialized := stripWhitespace(canonicalJSON(sampled))
	runes := []rune(serialized)
	if len(runes) > fingerprintMaxChars {
		runes = runes[:fingerprintMaxChars]
	}

	return fmt.Sprintf("%d_%d_%d", len(data), len(runes), simpleHash(string(runes)))
}

// sampleRecords picks up to max records spaced evenly across the set.
func sampleRecords(data []models.TrainingRecord, max int) []models.TrainingRecord {
	if len(data) <= max {
		return data
	}
	step := len(data) / max
	samples := make([]models.TrainingRecord, 0, max)
	for i := 0; i < max; i++ {
		samples = append(samples, data[i*step])
	}
	return samples
}

// canonicalJSON serializes records with a stable field order. Map keys are
// sorted by encoding/json, so identical records always serialize alike.
func canonicalJSON(records []models.TrainingRecord) string {
	raw, err := json.Marshal(records)
	if err != nil {
		// Unserializable values still need a stable stand-in.
		return fmt.Sprintf("unserializable:%d", len(records))
	}
	return string(raw)
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// simpleHash is a 32-bit rolling hash (h = h*31 + codepoint) wrapped on
// overflow, reported as an absolute value.
func simpleHash(s string) int64 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
