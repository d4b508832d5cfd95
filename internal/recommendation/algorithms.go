package recommendation

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/greattalk/feed-recommender/internal/models"
)

const (
	longPromptLength     = 100
	detailedPromptLength = 200
	experiencedUserTurns = 5
	trendingThreshold    = 70
	fastResponseMs       = 3000
	minResponsesForSpeed = 10
)

// Context carries the request-scoped data algorithms may need.
// Not every algorithm uses every field.
type Context struct {
	Now              time.Time
	Followed         map[string]struct{}
	Authors          map[string]models.UserProfile
	IncludeFollowing bool
	IncludeTrending  bool
}

// NewContext builds a scoring context from the raw follow list and author profiles
func NewContext(now time.Time, followed []string, authors []models.UserProfile) *Context {
	ctx := &Context{
		Now:      now,
		Followed: make(map[string]struct{}, len(followed)),
		Authors:  make(map[string]models.UserProfile, len(authors)),
	}
	for _, id := range followed {
		ctx.Followed[id] = struct{}{}
	}
	for _, a := range authors {
		ctx.Authors[a.ID] = a
	}
	return ctx
}

// Algorithm scores candidates for one user. Items scoring zero are omitted.
type Algorithm func(user models.UserProfile, candidates []models.ContentItem, interactions []models.InteractionRecord, ctx *Context) []models.ScoredItem

type algorithmSpec struct {
	name    string
	run     Algorithm
	enabled func(user models.UserProfile, ctx *Context) bool
}

var algorithms = []algorithmSpec{
	{
		name:    models.AlgorithmContentBased,
		run:     ContentBased,
		enabled: func(models.UserProfile, *Context) bool { return true },
	},
	{
		name: models.AlgorithmCollaborative,
		run:  Collaborative,
		enabled: func(u models.UserProfile, _ *Context) bool {
			return u.PostCount > 5 || u.ActivityScore > 30
		},
	},
	{
		name:    models.AlgorithmSocial,
		run:     Social,
		enabled: func(_ models.UserProfile, c *Context) bool { return c.IncludeFollowing },
	},
	{
		name:    models.AlgorithmTrending,
		run:     Trending,
		enabled: func(_ models.UserProfile, c *Context) bool { return c.IncludeTrending },
	},
	{
		name: models.AlgorithmAIEnhanced,
		run:  AIEnhanced,
		enabled: func(u models.UserProfile, _ *Context) bool {
			return u.InfluenceLevel() != models.InfluenceNewcomer
		},
	},
}

// SelectAlgorithms returns the names of the algorithms that apply to this user and request
func SelectAlgorithms(user models.UserProfile, ctx *Context) []string {
	var names []string
	for _, spec := range algorithms {
		if spec.enabled(user, ctx) {
			names = append(names, spec.name)
		}
	}
	return names
}

// runAlgorithms executes each selected algorithm independently
func runAlgorithms(user models.UserProfile, candidates []models.ContentItem, interactions []models.InteractionRecord, ctx *Context) (map[string][]models.ScoredItem, []string) {
	results := make(map[string][]models.ScoredItem)
	var ran []string
	for _, spec := range algorithms {
		if !spec.enabled(user, ctx) {
			continue
		}
		results[spec.name] = spec.run(user, candidates, interactions, ctx)
		ran = append(ran, spec.name)
	}
	return results, ran
}

// ContentBased matches post tags against the user's interaction vocabulary
func ContentBased(_ models.UserProfile, candidates []models.ContentItem, interactions []models.InteractionRecord, _ *Context) []models.ScoredItem {
	keywords := interactionKeywords(interactions)
	experienced := len(interactions) > experiencedUserTurns

	var scored []models.ScoredItem
	for _, item := range candidates {
		var score float64
		var reasons []string

		if sim := Jaccard(keywords, tagTokens(item.Tags)); sim > 0 {
			score += 40 * sim
			reasons = append(reasons, "Matches topics you have explored")
		}

		score += 20 * item.QualityScore
		if item.QualityScore >= 0.7 {
			reasons = append(reasons, "High quality content")
		}

		engagement := math.Max(0, math.Min(20, 20*item.EngagementRate/100))
		score += engagement
		if item.EngagementRate >= 30 {
			reasons = append(reasons, "Strong community engagement")
		}

		if experienced && utf8.RuneCountInString(item.SystemPrompt) > longPromptLength {
			score += 10
			reasons = append(reasons, "Detailed AI persona for experienced users")
		}

		if score <= 0 {
			continue
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "Relevant to your activity")
		}
		scored = append(scored, newScored(item, score, reasons, models.AlgorithmContentBased))
	}

	return scored
}

// Collaborative approximates peer similarity from engagement and author tier
func Collaborative(user models.UserProfile, candidates []models.ContentItem, _ []models.InteractionRecord, ctx *Context) []models.ScoredItem {
	tier := user.InfluenceLevel()

	var scored []models.ScoredItem
	for _, item := range candidates {
		var score float64
		var reasons []string

		if item.EngagementRate > user.EngagementRate {
			score += 30
			reasons = append(reasons, "More engaging than your usual content")
		}
		if author, ok := ctx.Authors[item.AuthorID]; ok && author.InfluenceLevel() == tier {
			score += 20
			reasons = append(reasons, "Popular with creators like you")
		}

		if score > 0 {
			scored = append(scored, newScored(item, score, reasons, models.AlgorithmCollaborative))
		}
	}

	return scored
}

// Social surfaces posts from followed authors
func Social(_ models.UserProfile, candidates []models.ContentItem, _ []models.InteractionRecord, ctx *Context) []models.ScoredItem {
	var scored []models.ScoredItem
	for _, item := range candidates {
		if _, ok := ctx.Followed[item.AuthorID]; !ok {
			continue
		}

		score := 50.0
		reasons := []string{"From someone you follow"}

		if item.AgeHours(ctx.Now) < 24 {
			score += 20
			reasons = append(reasons, "Posted in the last day")
		}
		if item.EngagementRate > 30 {
			score += 15
			reasons = append(reasons, "Getting lots of engagement")
		}

		scored = append(scored, newScored(item, score, reasons, models.AlgorithmSocial))
	}

	return scored
}

// Trending ranks posts by their precomputed trending score
func Trending(_ models.UserProfile, candidates []models.ContentItem, _ []models.InteractionRecord, ctx *Context) []models.ScoredItem {
	evening := isEvening(ctx.Now)

	var scored []models.ScoredItem
	for _, item := range candidates {
		if !item.IsTrending && item.TrendingScore <= trendingThreshold {
			continue
		}

		score := item.TrendingScore
		reasons := []string{"Trending right now"}

		if evening && item.EngagementRate > 40 {
			score += 10
			reasons = append(reasons, "Popular this evening")
		}

		if score > 0 {
			scored = append(scored, newScored(item, score, reasons, models.AlgorithmTrending))
		}
	}

	return scored
}

type responseStats struct {
	count     int
	totalTime float64
}

func (r responseStats) average() float64 {
	if r.count == 0 {
		return 0
	}
	return r.totalTime / float64(r.count)
}

// AIEnhanced rewards responsive AI personas and prompt overlap with the user's history
func AIEnhanced(user models.UserProfile, candidates []models.ContentItem, interactions []models.InteractionRecord, _ *Context) []models.ScoredItem {
	stats := make(map[string]responseStats)
	for _, rec := range interactions {
		s := stats[rec.ContentID]
		s.count++
		s.totalTime += rec.ResponseTimeMs
		stats[rec.ContentID] = s
	}
	vocabulary := interactionKeywords(interactions)

	var scored []models.ScoredItem
	for _, item := range candidates {
		var score float64
		var reasons []string

		if s := stats[item.ID]; s.count > minResponsesForSpeed && s.average() < fastResponseMs {
			score += 25
			reasons = append(reasons, "Fast, well-tested AI responses")
		}
		if utf8.RuneCountInString(item.SystemPrompt) > detailedPromptLength && user.ActivityScore > 60 {
			score += 20
			reasons = append(reasons, "Rich AI persona for active users")
		}
		if overlap := overlapRatio(vocabulary, tokenize(itemText(item))); overlap > 0 {
			score += 30 * overlap
			reasons = append(reasons, "Similar to conversations you have had")
		}

		if score > 0 {
			scored = append(scored, newScored(item, score, reasons, models.AlgorithmAIEnhanced))
		}
	}

	return scored
}

func isEvening(now time.Time) bool {
	return now.Hour() >= 18
}

func newScored(item models.ContentItem, score float64, reasons []string, algorithm string) models.ScoredItem {
	return models.ScoredItem{
		Item:      item,
		Score:     score,
		Reasons:   reasons,
		Algorithm: algorithm,
	}
}
