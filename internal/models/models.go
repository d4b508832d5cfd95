package models

import (
	"strings"
	"time"
)

// Tag is a named label attached to a post
type Tag struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ContentItem represents one user post as seen by the scoring pipeline
type ContentItem struct {
	ID           string `json:"id"`
	AuthorID     string `json:"author_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"` // AI system prompt configured by the author

	QualityScore    float64  `json:"quality_score"` // 0-1
	ModerationFlags []string `json:"moderation_flags"`
	SafetyScore     float64  `json:"safety_score"` // 0-1
	ReportCount     int      `json:"report_count"`

	InteractionCount int     `json:"interaction_count"`
	EngagementRate   float64 `json:"engagement_rate"` // percentage, 0-100
	TrendingScore    float64 `json:"trending_score"`  // 0-100

	PublishedAt time.Time `json:"published_at"`
	IsPublic    bool      `json:"is_public"`
	IsTrending  bool      `json:"is_trending"`
	Categories  []string  `json:"categories"`
	Tags        []Tag     `json:"tags"`
}

// AgeHours returns the hours elapsed between publication and now
func (c ContentItem) AgeHours(now time.Time) float64 {
	return now.Sub(c.PublishedAt).Hours()
}

// Clone returns a deep copy of the item so callers can mutate slices safely
func (c ContentItem) Clone() ContentItem {
	out := c
	out.ModerationFlags = append([]string(nil), c.ModerationFlags...)
	out.Categories = append([]string(nil), c.Categories...)
	out.Tags = append([]Tag(nil), c.Tags...)
	return out
}

// InfluenceLevel is the coarse social-reach tier of a user
type InfluenceLevel int

const (
	InfluenceNewcomer InfluenceLevel = iota
	InfluenceRegular
	InfluenceExpert
	InfluenceCelebrity
)

func (l InfluenceLevel) String() string {
	switch l {
	case InfluenceRegular:
		return "regular"
	case InfluenceExpert:
		return "expert"
	case InfluenceCelebrity:
		return "celebrity"
	default:
		return "newcomer"
	}
}

// MarshalText renders the level by name
func (l InfluenceLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseInfluenceLevel accepts the level names; "popular" is treated as "expert"
func ParseInfluenceLevel(s string) (InfluenceLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newcomer":
		return InfluenceNewcomer, true
	case "regular":
		return InfluenceRegular, true
	case "expert", "popular":
		return InfluenceExpert, true
	case "celebrity":
		return InfluenceCelebrity, true
	}
	return InfluenceNewcomer, false
}

// DeriveInfluence maps activity score and post count onto an influence tier.
// Raising either input never lowers the tier.
func DeriveInfluence(activityScore float64, postCount int) InfluenceLevel {
	switch {
	case activityScore >= 90 && postCount >= 100:
		return InfluenceCelebrity
	case activityScore >= 70 && postCount >= 25:
		return InfluenceExpert
	case activityScore >= 30 || postCount >= 5:
		return InfluenceRegular
	default:
		return InfluenceNewcomer
	}
}

// UserProfile represents one account for scoring purposes
type UserProfile struct {
	ID             string  `json:"id"`
	ActivityScore  float64 `json:"activity_score"` // 0-100
	PostCount      int     `json:"post_count"`
	EngagementRate float64 `json:"engagement_rate"` // percentage, 0-100
}

// InfluenceLevel is always derived, never stored
func (u UserProfile) InfluenceLevel() InfluenceLevel {
	return DeriveInfluence(u.ActivityScore, u.PostCount)
}

// InteractionRecord is one AI conversation turn tied to a user and a post
type InteractionRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ContentID      string    `json:"content_id"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	Relevance      float64   `json:"relevance"`   // 0-1
	Helpfulness    float64   `json:"helpfulness"` // 0-1
	Accuracy       float64   `json:"accuracy"`    // 0-1
	CreatedAt      time.Time `json:"created_at"`
}

// Quality averages the three quality sub-scores
func (r InteractionRecord) Quality() float64 {
	return (r.Relevance + r.Helpfulness + r.Accuracy) / 3
}

// ModerationReport summarizes a moderation sweep over the content pool
type ModerationReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Period      string                 `json:"period"` // "hourly", "daily" or "manual"
	Reviewed    int                    `json:"reviewed"`
	Rejected    []ModerationDecision   `json:"rejected"`
	Summary     map[string]interface{} `json:"summary"`
}

// ModerationDecision pairs a post with the moderation outcome it received
type ModerationDecision struct {
	Item       ContentItem `json:"item"`
	IsApproved bool        `json:"is_approved"`
	Flags      []string    `json:"flags"`
	Confidence float64     `json:"confidence"`
	Reasons    []string    `json:"reasons"`
}

// Alert represents an urgent notification
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "critical", "urgent", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ContentID string    `json:"content_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
