package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/sirupsen/logrus"
)

// Thresholds used when scoring a post's moderation confidence
const (
	QualityFloor    = 0.3
	SafetyThreshold = 0.7
	SafetyFloor     = 0.5 // below this the post is flagged outright
	MaxReports      = 3
	ApprovalMinimum = 0.5
	UnsafeFlag      = "unsafe"
	qualityPenalty  = 0.3
	safetyPenalty   = 0.4
	reportPenalty   = 0.5
	spamPenalty     = 0.6
	fullConfidence  = 1.0
)

var defaultSpamPatterns = []string{
	`(?i)\b(buy now|click here|limited time offer|act now|order today)\b`,
	`(?i)\b(free money|make money fast|100% free|risk[- ]free|guaranteed income)\b`,
	`(?i)\bearn \$?\d+[k]? (per|a) (day|week|hour)\b`,
	`(?i)\b(crypto|bitcoin) (giveaway|doubler)\b`,
	`(?is)(https?://\S+.*?){3,}`,
}

// Result is the moderation outcome for one post
type Result struct {
	IsApproved bool     `json:"is_approved"`
	Flags      []string `json:"flags"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Evaluator applies the moderation checks. It holds only compiled patterns and is
// safe for concurrent use.
type Evaluator struct {
	spamPatterns []*regexp.Regexp
}

// NewEvaluator compiles the built-in spam patterns plus any extra literal phrases
func NewEvaluator(extraPhrases []string) *Evaluator {
	e := &Evaluator{}
	for _, p := range defaultSpamPatterns {
		e.spamPatterns = append(e.spamPatterns, regexp.MustCompile(p))
	}
	for _, phrase := range extraPhrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			logrus.Warnf("Skipping spam phrase %q: %v", phrase, err)
			continue
		}
		e.spamPatterns = append(e.spamPatterns, re)
	}
	return e
}

// Evaluate scores a post against the moderation checks. It never fails.
func (e *Evaluator) Evaluate(item models.ContentItem) Result {
	result := Result{
		Flags:      append([]string{}, item.ModerationFlags...),
		Confidence: fullConfidence,
		Reasons:    []string{},
	}

	if item.QualityScore < QualityFloor {
		result.Confidence -= qualityPenalty
		result.Reasons = append(result.Reasons, fmt.Sprintf("quality score %.2f below %.2f", item.QualityScore, QualityFloor))
	}

	if item.SafetyScore < SafetyThreshold {
		result.Confidence -= safetyPenalty
		result.Reasons = append(result.Reasons, fmt.Sprintf("safety score %.2f below %.2f", item.SafetyScore, SafetyThreshold))
	}
	if item.SafetyScore < SafetyFloor && !hasFlag(result.Flags, UnsafeFlag) {
		result.Flags = append(result.Flags, UnsafeFlag)
	}

	if item.ReportCount > MaxReports {
		result.Confidence -= reportPenalty
		result.Reasons = append(result.Reasons, fmt.Sprintf("reported %d times", item.ReportCount))
	}

	if pattern := e.matchSpam(item); pattern != "" {
		result.Confidence -= spamPenalty
		result.Reasons = append(result.Reasons, "matches spam pattern "+pattern)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if len(result.Flags) > 0 {
		result.Reasons = append(result.Reasons, "flagged: "+strings.Join(result.Flags, ", "))
	}

	result.IsApproved = len(result.Flags) == 0 && result.Confidence > ApprovalMinimum
	return result
}

// Filter keeps only approved items and returns how many were rejected
func (e *Evaluator) Filter(items []models.ScoredItem) ([]models.ScoredItem, int) {
	kept := make([]models.ScoredItem, 0, len(items))
	for _, s := range items {
		if e.Evaluate(s.Item).IsApproved {
			kept = append(kept, s)
		}
	}
	return kept, len(items) - len(kept)
}

func (e *Evaluator) matchSpam(item models.ContentItem) string {
	for _, re := range e.spamPatterns {
		if re.MatchString(item.Title) || re.MatchString(item.Description) {
			return re.String()
		}
	}
	return ""
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
