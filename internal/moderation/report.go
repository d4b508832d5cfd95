package moderation

import (
	"time"

	"github.com/greattalk/feed-recommender/internal/models"
)

// Sweep evaluates every item in the pool and collects the rejections into a report.
// The summary carries "approved", "rejected", "approval_rate" and per-flag counts under "flags".
func (e *Evaluator) Sweep(items []models.ContentItem, period string, now time.Time) *models.ModerationReport {
	report := &models.ModerationReport{
		GeneratedAt: now,
		Period:      period,
		Reviewed:    len(items),
		Rejected:    []models.ModerationDecision{},
		Summary:     make(map[string]interface{}),
	}

	flagCount := make(map[string]int)
	approved := 0

	for _, item := range items {
		result := e.Evaluate(item)
		for _, f := range result.Flags {
			flagCount[f]++
		}
		if result.IsApproved {
			approved++
			continue
		}
		report.Rejected = append(report.Rejected, models.ModerationDecision{
			Item:       item,
			IsApproved: false,
			Flags:      result.Flags,
			Confidence: result.Confidence,
			Reasons:    result.Reasons,
		})
	}

	rate := 0.0
	if len(items) > 0 {
		rate = float64(approved) / float64(len(items))
	}

	report.Summary["approved"] = approved
	report.Summary["rejected"] = len(report.Rejected)
	report.Summary["approval_rate"] = rate
	report.Summary["flags"] = flagCount

	return report
}

// Unsafe returns the rejected decisions that carry the unsafe flag
func Unsafe(report *models.ModerationReport) []models.ModerationDecision {
	var out []models.ModerationDecision
	for _, d := range report.Rejected {
		if hasFlag(d.Flags, UnsafeFlag) {
			out = append(out, d)
		}
	}
	return out
}
