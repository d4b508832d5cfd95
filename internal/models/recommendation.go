package models

import "time"

// Algorithm names attached to scored items
const (
	AlgorithmContentBased  = "content_based"
	AlgorithmCollaborative = "collaborative"
	AlgorithmSocial        = "social"
	AlgorithmTrending      = "trending"
	AlgorithmAIEnhanced    = "ai_enhanced"
	AlgorithmHybrid        = "hybrid"
	AlgorithmEnsemble      = "ensemble"
)

// ScoredItem is produced per scoring call and discarded with the request
type ScoredItem struct {
	Item      ContentItem `json:"item"`
	Score     float64     `json:"score"`
	Reasons   []string    `json:"reasons"`
	Algorithm string      `json:"algorithm"`
}

// RecommendationRequest carries the caller's knobs for one recommendation run
type RecommendationRequest struct {
	UserID           string   `json:"user_id"`
	Limit            int      `json:"limit"`
	ExcludeIDs       []string `json:"exclude_ids"`
	IncludeFollowing bool     `json:"include_following"`
	IncludeTrending  bool     `json:"include_trending"`
	DiversityWeight  *float64 `json:"diversity_weight,omitempty"`
	NoveltyWeight    *float64 `json:"novelty_weight,omitempty"`
}

// RecommendationMetadata describes how a result was produced
type RecommendationMetadata struct {
	Algorithms     []string      `json:"algorithms"`
	CandidateCount int           `json:"candidate_count"`
	RejectedCount  int           `json:"rejected_count"`
	UserInfluence  string        `json:"user_influence"`
	GeneratedAt    time.Time     `json:"generated_at"`
	ProcessingTime time.Duration `json:"processing_time"`
	CacheHit       bool          `json:"cache_hit"`
}

// RecommendationResult is the ranked, moderated output of the pipeline
type RecommendationResult struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Items       []ScoredItem           `json:"items"`
	Algorithm   string                 `json:"algorithm"`
	Confidence  float64                `json:"confidence"`
	Explanation []string               `json:"explanation"`
	Metadata    RecommendationMetadata `json:"metadata"`
}
