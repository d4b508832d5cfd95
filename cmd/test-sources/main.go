package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 GreatTalk Feed Recommender - Document Store Connectivity Test")
	fmt.Println("================================================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	source := sources.NewFirestoreSource(cfg.FirestoreBaseURL, cfg.FirestoreProjectID, cfg.FirestoreAPIKey)
	if !source.IsEnabled() {
		fmt.Println("⚠️  Firestore source is DISABLED (missing project ID)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("\n📡 Testing %s (project %s)...\n", source.GetName(), cfg.FirestoreProjectID)
	fmt.Println(strings.Repeat("-", 40))

	fmt.Print("🔸 Listing posts... ")
	posts, err := source.ListContent(ctx, 5)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ SUCCESS (%d posts)\n", len(posts))
	if len(posts) == 0 {
		return
	}
	fmt.Printf("   📝 Sample: \"%s\" by %s\n", posts[0].Title, posts[0].AuthorID)

	userID := posts[0].AuthorID
	if len(os.Args) > 1 {
		userID = os.Args[1]
	}

	fmt.Printf("🔸 Loading user %s... ", userID)
	if user, err := source.GetUser(ctx, userID); err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ SUCCESS (%s, %d posts)\n", user.InfluenceLevel(), user.PostCount)
	}

	fmt.Print("🔸 Listing interactions... ")
	if records, err := source.ListInteractions(ctx, userID); err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ SUCCESS (%d interactions)\n", len(records))
	}

	fmt.Print("🔸 Listing follows... ")
	if following, err := source.ListFollowing(ctx, userID); err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ SUCCESS (%d followed users)\n", len(following))
	}

	fmt.Println("\n✅ Connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Run the pipeline against sample data with: go run ./cmd/test-pipeline")
	fmt.Println("   • Start the service with: go run ./cmd/recommender")
}
