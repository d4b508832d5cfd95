package recommendation

import "github.com/greattalk/feed-recommender/internal/models"

// MinCandidateQuality is the quality score a post must exceed to be considered
const MinCandidateQuality = 0.3

// FilterCandidates returns the public, unflagged, non-excluded posts above the quality
// minimum, preserving input order.
func FilterCandidates(pool []models.ContentItem, exclude []string) []models.ContentItem {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	filtered := make([]models.ContentItem, 0, len(pool))
	for _, item := range pool {
		if isCandidate(item, excluded) {
			filtered = append(filtered, item)
		}
	}

	return filtered
}

func isCandidate(item models.ContentItem, excluded map[string]struct{}) bool {
	if !item.IsPublic {
		return false
	}
	if _, skip := excluded[item.ID]; skip {
		return false
	}
	if len(item.ModerationFlags) > 0 {
		return false
	}
	return item.QualityScore > MinCandidateQuality
}
