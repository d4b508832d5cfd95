package rules

// DefaultRules is the built-in rule set used when no rules file is configured
func DefaultRules() []BusinessRule {
	return []BusinessRule{
		{
			ID:          "user-power-creator",
			Name:        "Power creator recognition",
			Description: "Highly active users with a large catalogue get creator tooling",
			Entity:      EntityUser,
			Conditions: []Condition{
				{Field: "social.activity_score", Operator: OpGreaterThan, Value: Number(80)},
				{Field: "stats.post_count", Operator: OpGreaterThan, Value: Number(50), Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionEnhance, Target: "badge", Value: String("power_creator")},
				{Type: ActionEnhance, Target: "features", Value: Strings([]string{"analytics", "scheduled_posts"})},
			},
			Priority: 100,
			Active:   true,
		},
		{
			ID:          "user-newcomer-onboarding",
			Name:        "Newcomer onboarding",
			Description: "New accounts are steered to the onboarding feed",
			Entity:      EntityUser,
			Conditions: []Condition{
				{Field: "social.influence_level", Operator: OpEquals, Value: String("newcomer")},
			},
			Actions: []Action{
				{Type: ActionEnhance, Target: "feed", Value: String("onboarding")},
				{Type: ActionFlag, Value: String("needs_onboarding")},
			},
			Priority: 90,
			Active:   true,
		},
		{
			ID:          "user-low-engagement",
			Name:        "Re-engagement candidate",
			Entity:      EntityUser,
			Conditions: []Condition{
				{Field: "stats.engagement_rate", Operator: OpLessThan, Value: Number(5)},
				{Field: "stats.post_count", Operator: OpGreaterThan, Value: Number(0), Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionFlag, Value: String("re_engagement")},
			},
			Priority: 50,
			Active:   true,
		},
		{
			ID:          "content-unsafe",
			Name:        "Unsafe content",
			Description: "Posts below the safety floor or heavily reported are flagged for review",
			Entity:      EntityContent,
			Conditions: []Condition{
				{Field: "quality.safety", Operator: OpLessThan, Value: Number(0.5)},
				{Field: "quality.reports", Operator: OpGreaterThan, Value: Number(3), Logic: LogicOr},
			},
			Actions: []Action{
				{Type: ActionFlag, Value: String("needs_review")},
				{Type: ActionModify, Target: "metadata.is_trending", Value: Bool(false)},
			},
			Priority: 100,
			Active:   true,
		},
		{
			ID:          "content-spam-title",
			Name:        "Promotional title",
			Entity:      EntityContent,
			Conditions: []Condition{
				{Field: "content.title", Operator: OpRegex, Value: String(`(?i)\b(buy now|click here|free money|giveaway)\b`)},
			},
			Actions: []Action{
				{Type: ActionFlag, Value: String("spam")},
			},
			Priority: 90,
			Active:   true,
		},
		{
			ID:          "content-featured",
			Name:        "Featured candidate",
			Description: "High quality, engaging posts are promoted",
			Entity:      EntityContent,
			Conditions: []Condition{
				{Field: "quality.score", Operator: OpGreaterThan, Value: Number(0.85)},
				{Field: "engagement.rate", Operator: OpGreaterThan, Value: Number(40), Logic: LogicAnd},
				{Field: "quality.flags", Operator: OpEquals, Value: List(), Logic: LogicAnd},
			},
			Actions: []Action{
				{Type: ActionEnhance, Target: "featured", Value: Bool(true)},
				{Type: ActionModify, Target: "engagement.trending", Value: Number(75)},
			},
			Priority: 10,
			Active:   true,
		},
		{
			ID:          "interaction-slow-response",
			Name:        "Slow AI response",
			Entity:      EntityInteraction,
			Conditions: []Condition{
				{Field: "response_time_ms", Operator: OpGreaterThan, Value: Number(10000)},
			},
			Actions: []Action{
				{Type: ActionFlag, Value: String("slow_response")},
			},
			Priority: 50,
			Active:   true,
		},
		{
			ID:          "interaction-high-quality",
			Name:        "High quality conversation",
			Entity:      EntityInteraction,
			Conditions: []Condition{
				{Field: "quality.overall", Operator: OpGreaterThan, Value: Number(0.8)},
			},
			Actions: []Action{
				{Type: ActionEnhance, Target: "training_candidate", Value: Bool(true)},
			},
			Priority: 40,
			Active:   true,
		},
	}
}
