package moderation

import (
	"testing"
	"time"

	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanItem() models.ContentItem {
	return models.ContentItem{
		ID:           "p1",
		Title:        "Stoic reflections",
		Description:  "A calm persona that discusses Seneca",
		QualityScore: 0.9,
		SafetyScore:  0.95,
		IsPublic:     true,
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	evaluator := NewEvaluator(nil)

	tests := []struct {
		name       string
		mutate     func(*models.ContentItem)
		approved   bool
		confidence float64
		flags      []string
	}{
		{
			name:       "Clean post",
			mutate:     func(*models.ContentItem) {},
			approved:   true,
			confidence: 1.0,
			flags:      []string{},
		},
		{
			name:       "Low quality",
			mutate:     func(i *models.ContentItem) { i.QualityScore = 0.2 },
			approved:   true,
			confidence: 0.7,
			flags:      []string{},
		},
		{
			name:       "Report count boundary",
			mutate:     func(i *models.ContentItem) { i.ReportCount = 4 },
			approved:   false,
			confidence: 0.5,
			flags:      []string{},
		},
		{
			name:       "Exactly three reports",
			mutate:     func(i *models.ContentItem) { i.ReportCount = 3 },
			approved:   true,
			confidence: 1.0,
			flags:      []string{},
		},
		{
			name:       "Borderline safety",
			mutate:     func(i *models.ContentItem) { i.SafetyScore = 0.6 },
			approved:   true,
			confidence: 0.6,
			flags:      []string{},
		},
		{
			name:       "Below safety floor",
			mutate:     func(i *models.ContentItem) { i.SafetyScore = 0.4 },
			approved:   false,
			confidence: 0.6,
			flags:      []string{UnsafeFlag},
		},
		{
			name:       "Existing flag",
			mutate:     func(i *models.ContentItem) { i.ModerationFlags = []string{"harassment"} },
			approved:   false,
			confidence: 1.0,
			flags:      []string{"harassment"},
		},
		{
			name:       "Spam phrase",
			mutate:     func(i *models.ContentItem) { i.Title = "Click here for answers" },
			approved:   false,
			confidence: 0.4,
			flags:      []string{},
		},
		{
			name: "Link farm",
			mutate: func(i *models.ContentItem) {
				i.Description = "see https://a.example and https://b.example or https://c.example"
			},
			approved:   false,
			confidence: 0.4,
			flags:      []string{},
		},
		{
			name: "Every penalty floors at zero",
			mutate: func(i *models.ContentItem) {
				i.QualityScore = 0.1
				i.SafetyScore = 0.6
				i.ReportCount = 10
				i.Title = "Free money inside"
			},
			approved:   false,
			confidence: 0,
			flags:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := cleanItem()
			tt.mutate(&item)

			result := evaluator.Evaluate(item)

			assert.Equal(t, tt.approved, result.IsApproved)
			assert.InDelta(t, tt.confidence, result.Confidence, 1e-9)
			assert.Equal(t, tt.flags, result.Flags)
			if !tt.approved {
				assert.NotEmpty(t, result.Reasons)
			}
		})
	}
}

func TestEvaluator_EvaluateDoesNotAliasFlags(t *testing.T) {
	item := cleanItem()
	item.ModerationFlags = make([]string, 0, 4)
	item.SafetyScore = 0.1

	result := NewEvaluator(nil).Evaluate(item)

	assert.Equal(t, []string{UnsafeFlag}, result.Flags)
	assert.Empty(t, item.ModerationFlags)
}

func TestEvaluator_ConfidenceIsMonotone(t *testing.T) {
	evaluator := NewEvaluator(nil)
	values := []float64{1.0, 0.9, 0.7, 0.69, 0.5, 0.3, 0.29, 0.1, 0}

	for _, quality := range values {
		for i := 0; i+1 < len(values); i++ {
			higher := cleanItem()
			higher.QualityScore = quality
			higher.SafetyScore = values[i]
			lower := higher
			lower.SafetyScore = values[i+1]
			assert.LessOrEqual(t, evaluator.Evaluate(lower).Confidence, evaluator.Evaluate(higher).Confidence)
		}
	}

	for _, safety := range values {
		for i := 0; i+1 < len(values); i++ {
			higher := cleanItem()
			higher.SafetyScore = safety
			higher.QualityScore = values[i]
			lower := higher
			lower.QualityScore = values[i+1]
			assert.LessOrEqual(t, evaluator.Evaluate(lower).Confidence, evaluator.Evaluate(higher).Confidence)
		}
	}

	for reports := 0; reports < 8; reports++ {
		fewer := cleanItem()
		fewer.ReportCount = reports
		more := fewer
		more.ReportCount = reports + 1
		assert.LessOrEqual(t, evaluator.Evaluate(more).Confidence, evaluator.Evaluate(fewer).Confidence)
	}
}

func TestEvaluator_ExtraPhrases(t *testing.T) {
	evaluator := NewEvaluator([]string{" dm for prices ", "", "c++ guru"})

	item := cleanItem()
	item.Description = "DM for prices on custom bots"
	assert.False(t, evaluator.Evaluate(item).IsApproved)

	item = cleanItem()
	item.Title = "Ask the C++ guru"
	assert.InDelta(t, 0.4, evaluator.Evaluate(item).Confidence, 1e-9)

	assert.True(t, evaluator.Evaluate(cleanItem()).IsApproved)
}

func TestEvaluator_Filter(t *testing.T) {
	evaluator := NewEvaluator(nil)

	spam := cleanItem()
	spam.ID = "p2"
	spam.Title = "Make money fast"
	unsafe := cleanItem()
	unsafe.ID = "p3"
	unsafe.SafetyScore = 0.2

	kept, rejected := evaluator.Filter([]models.ScoredItem{
		{Item: cleanItem(), Score: 10},
		{Item: spam, Score: 9},
		{Item: unsafe, Score: 8},
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "p1", kept[0].Item.ID)
	assert.Equal(t, 2, rejected)
}

func TestEvaluator_Sweep(t *testing.T) {
	evaluator := NewEvaluator(nil)
	now := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	unsafe := cleanItem()
	unsafe.ID = "p2"
	unsafe.SafetyScore = 0.3
	flagged := cleanItem()
	flagged.ID = "p3"
	flagged.ModerationFlags = []string{"spam"}

	report := evaluator.Sweep([]models.ContentItem{cleanItem(), unsafe, flagged}, "daily", now)

	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, "daily", report.Period)
	assert.Equal(t, 3, report.Reviewed)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, 1, report.Summary["approved"])
	assert.Equal(t, 2, report.Summary["rejected"])
	assert.InDelta(t, 1.0/3.0, report.Summary["approval_rate"].(float64), 1e-9)
	assert.Equal(t, map[string]int{UnsafeFlag: 1, "spam": 1}, report.Summary["flags"])

	unsafeDecisions := Unsafe(report)
	require.Len(t, unsafeDecisions, 1)
	assert.Equal(t, "p2", unsafeDecisions[0].Item.ID)
}

func TestEvaluator_SweepEmptyPool(t *testing.T) {
	report := NewEvaluator(nil).Sweep(nil, "hourly", time.Now())

	assert.Equal(t, 0, report.Reviewed)
	assert.Empty(t, report.Rejected)
	assert.Equal(t, 0.0, report.Summary["approval_rate"])
}
