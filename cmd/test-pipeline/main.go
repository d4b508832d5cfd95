package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/greattalk/feed-recommender/internal/cache"
	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/moderation"
	"github.com/greattalk/feed-recommender/internal/recommendation"
	"github.com/greattalk/feed-recommender/internal/rules"
	"github.com/greattalk/feed-recommender/internal/storage"
)

// sampleProvider serves a fixed data set in place of the document store
type sampleProvider struct {
	posts        []models.ContentItem
	users        map[string]models.UserProfile
	interactions map[string][]models.InteractionRecord
	following    map[string][]string
}

func (p *sampleProvider) ListContent(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if limit < len(p.posts) {
		return p.posts[:limit], nil
	}
	return p.posts, nil
}

func (p *sampleProvider) ListInteractions(ctx context.Context, userID string) ([]models.InteractionRecord, error) {
	return p.interactions[userID], nil
}

func (p *sampleProvider) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return p.following[userID], nil
}

func (p *sampleProvider) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	user, ok := p.users[userID]
	if !ok {
		return models.UserProfile{}, fmt.Errorf("user %s not found", userID)
	}
	return user, nil
}

func (p *sampleProvider) ListUsers(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	var out []models.UserProfile
	for _, id := range userIDs {
		if u, ok := p.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// consoleNotifier prints the digest and alerts to the terminal
type consoleNotifier struct{}

func (consoleNotifier) SendReport(report *models.ModerationReport) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("🛡️  MODERATION DIGEST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("📅 Period: %s\n", report.Period)
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("📈 Reviewed: %d | 🚫 Rejected: %d\n", report.Reviewed, len(report.Rejected))

	if flags, ok := report.Summary["flags"].(map[string]int); ok && len(flags) > 0 {
		fmt.Println("\n🏷️  Flags:")
		for flag, count := range flags {
			fmt.Printf("   • %-15s %d\n", flag+":", count)
		}
	}

	for i, d := range report.Rejected {
		fmt.Printf("\n   %d. %s (confidence %.1f)\n", i+1, d.Item.Title, d.Confidence)
		for _, reason := range d.Reasons {
			fmt.Printf("      ↳ %s\n", reason)
		}
	}
	return nil
}

func (consoleNotifier) SendAlert(alert *models.Alert) error {
	fmt.Println("\n🚨 ALERT")
	fmt.Printf("Type: %s\n", alert.Type)
	fmt.Printf("Message: %s\n", alert.Message)
	return nil
}

func main() {
	fmt.Println("🤖 GreatTalk Feed Recommender - Pipeline Test")
	fmt.Println("=============================================")

	cfg := &config.Config{
		ModerationSchedule: "daily",
		TimeZone:           "UTC",
		PoolSize:           100,
		CacheMaxEntries:    10,
		DiversityWeight:    0.3,
		NoveltyWeight:      0.2,
		DefaultLimit:       5,
		MaxLimit:           20,
		TeamsWebhookURL:    "console",
	}

	archive, err := storage.NewLocalStorage("test_output")
	if err != nil {
		log.Fatalf("Failed to prepare test_output: %v", err)
	}

	provider := samples(time.Now())
	evaluator := moderation.NewEvaluator(nil)
	recommender := recommendation.NewService(cfg, provider, archive, evaluator, cache.New(cfg.CacheMaxEntries), nil)
	moderator := moderation.NewService(cfg, provider, archive, consoleNotifier{}, evaluator, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, req := range []models.RecommendationRequest{
		{UserID: "newcomer"},
		{UserID: "tutor_fan", IncludeFollowing: true, IncludeTrending: true},
	} {
		result, err := recommender.Recommend(ctx, req)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", req.UserID, err)
			continue
		}
		printResult(result)
	}

	fmt.Println("\n📜 Rule evaluation")
	fmt.Println(strings.Repeat("-", 40))
	engine, err := rules.NewEngine(rules.DefaultRules(), nil)
	if err != nil {
		log.Fatalf("Invalid built-in rules: %v", err)
	}
	for _, user := range []string{"newcomer", "tutor_fan", "creator"} {
		for _, r := range engine.ExecuteUserRules(provider.users[user], map[string]interface{}{"hour": time.Now().Hour()}) {
			if r.Matched {
				fmt.Printf("   ✅ %-10s %s %v\n", user, r.RuleName, r.Enrichments)
			}
		}
	}

	if _, err := moderator.RunSweep(ctx, "manual"); err != nil {
		fmt.Printf("\n⚠️  Moderation sweep failed: %v\n", err)
	}

	fmt.Println("\n📊 Metrics")
	fmt.Println(recommender.GetMetrics())
	fmt.Println(moderator.GetMetrics())
	fmt.Println("\n💾 Archived runs written under test_output/")
}

func printResult(result *models.RecommendationResult) {
	fmt.Printf("\n👤 %s (%s) - %d items, confidence %.2f\n",
		result.UserID, result.Metadata.UserInfluence, len(result.Items), result.Confidence)
	fmt.Printf("   🧮 Algorithms: %s\n", strings.Join(result.Metadata.Algorithms, ", "))
	for _, line := range result.Explanation {
		fmt.Printf("   💡 %s\n", line)
	}
	for i, it := range result.Items {
		fmt.Printf("   %d. %-40s ⭐ %.1f\n", i+1, it.Item.Title, it.Score)
		if len(it.Reasons) > 0 {
			fmt.Printf("      ↳ %s\n", strings.Join(it.Reasons, "; "))
		}
	}
}

func samples(now time.Time) *sampleProvider {
	post := func(id, author, title, description string, quality, safety, rate float64, age time.Duration, categories ...string) models.ContentItem {
		return models.ContentItem{
			ID:               id,
			AuthorID:         author,
			Title:            title,
			Description:      description,
			SystemPrompt:     "You are a helpful assistant for " + strings.ToLower(title),
			QualityScore:     quality,
			SafetyScore:      safety,
			EngagementRate:   rate,
			InteractionCount: int(rate * 3),
			TrendingScore:    rate,
			PublishedAt:      now.Add(-age),
			IsPublic:         true,
			IsTrending:       rate > 50,
			Categories:       categories,
			ModerationFlags:  []string{},
		}
	}

	spam := post("p6", "spammer", "Earn $500 per day", "Click here to buy now", 0.7, 0.9, 80, time.Hour, "finance")
	reported := post("p7", "troll", "Hot takes", "You will hate this", 0.6, 0.4, 20, 4*time.Hour, "opinion")
	reported.ReportCount = 5

	return &sampleProvider{
		posts: []models.ContentItem{
			post("p1", "creator", "Socratic Math Tutor", "Guides you through algebra with questions", 0.92, 0.98, 64, 2*time.Hour, "education", "math"),
			post("p2", "creator", "Python Pair Programmer", "Reviews your code and suggests tests", 0.88, 0.97, 45, 30*time.Hour, "education", "programming"),
			post("p3", "chef", "Weeknight Recipe Planner", "Plans meals from what is in your fridge", 0.75, 0.99, 22, 80*time.Hour, "cooking"),
			post("p4", "traveler", "Itinerary Builder", "Builds day by day travel plans", 0.81, 0.95, 12, 200*time.Hour, "travel"),
			post("p5", "creator", "Essay Feedback Coach", "Gives structured feedback on essays", 0.7, 0.96, 33, 8*time.Hour, "education", "writing"),
			spam,
			reported,
		},
		users: map[string]models.UserProfile{
			"newcomer":  {ID: "newcomer"},
			"tutor_fan": {ID: "tutor_fan", ActivityScore: 55, PostCount: 12, EngagementRate: 18},
			"creator":   {ID: "creator", ActivityScore: 93, PostCount: 140, EngagementRate: 41},
			"chef":      {ID: "chef", ActivityScore: 72, PostCount: 30, EngagementRate: 25},
		},
		interactions: map[string][]models.InteractionRecord{
			"tutor_fan": {
				{ID: "i1", UserID: "tutor_fan", ContentID: "p1", Prompt: "help me with algebra questions", Response: "Let's start with what you know about algebra", Relevance: 0.9, Helpfulness: 0.85, Accuracy: 0.95, ResponseTimeMs: 1800, CreatedAt: now.Add(-time.Hour)},
				{ID: "i2", UserID: "tutor_fan", ContentID: "p5", Prompt: "feedback on my essay intro", Response: "Your thesis is clear", Relevance: 0.8, Helpfulness: 0.7, Accuracy: 0.9, ResponseTimeMs: 2400, CreatedAt: now.Add(-3 * time.Hour)},
			},
		},
		following: map[string][]string{
			"tutor_fan": {"chef"},
		},
	}
}
