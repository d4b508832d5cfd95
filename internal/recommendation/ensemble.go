package recommendation

import (
	"math"
	"sort"
	"time"

	"github.com/greattalk/feed-recommender/internal/models"
)

// Weights control the diversity and novelty adjustments applied after merging
type Weights struct {
	Diversity float64
	Novelty   float64
}

// Merge combines per-algorithm lists by item ID. Scores are summed, reasons are
// unioned in first-seen order and items touched by more than one algorithm are
// tagged hybrid. Output follows first-seen order across the lists.
func Merge(lists ...[]models.ScoredItem) []models.ScoredItem {
	type aggregate struct {
		item       models.ScoredItem
		reasons    map[string]struct{}
		algorithms map[string]struct{}
	}

	index := make(map[string]int)
	var merged []*aggregate

	for _, list := range lists {
		for _, scored := range list {
			pos, exists := index[scored.Item.ID]
			if !exists {
				agg := &aggregate{
					item: models.ScoredItem{
						Item:      scored.Item,
						Algorithm: scored.Algorithm,
					},
					reasons:    make(map[string]struct{}),
					algorithms: make(map[string]struct{}),
				}
				index[scored.Item.ID] = len(merged)
				merged = append(merged, agg)
				pos = len(merged) - 1
			}

			agg := merged[pos]
			agg.item.Score += scored.Score
			agg.algorithms[scored.Algorithm] = struct{}{}
			for _, r := range scored.Reasons {
				if _, seen := agg.reasons[r]; seen {
					continue
				}
				agg.reasons[r] = struct{}{}
				agg.item.Reasons = append(agg.item.Reasons, r)
			}
			if len(agg.algorithms) > 1 {
				agg.item.Algorithm = models.AlgorithmHybrid
			}
		}
	}

	out := make([]models.ScoredItem, len(merged))
	for i, agg := range merged {
		out[i] = agg.item
	}
	return out
}

// Combine merges the lists, applies the diversity and novelty adjustments and
// returns the items ordered by adjusted score. Equal scores keep merge order.
func Combine(lists [][]models.ScoredItem, w Weights, now time.Time) []models.ScoredItem {
	items := Merge(lists...)
	if len(items) == 0 {
		return items
	}

	applyDiversity(items, w.Diversity)
	applyNovelty(items, w.Novelty, now)
	sortByScore(items)

	return items
}

// applyDiversity walks items in score order and rewards the first appearance of each
// category and each author. Traversal order decides who receives the bonus.
func applyDiversity(items []models.ScoredItem, weight float64) {
	if weight == 0 {
		return
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Score > items[order[b]].Score
	})

	seenCategories := make(map[string]struct{})
	seenAuthors := make(map[string]struct{})

	for _, idx := range order {
		item := &items[idx]

		newCategory := false
		for _, c := range item.Item.Categories {
			if _, seen := seenCategories[c]; !seen {
				seenCategories[c] = struct{}{}
				newCategory = true
			}
		}
		if newCategory {
			item.Score += weight * 10
		}

		if _, seen := seenAuthors[item.Item.AuthorID]; !seen {
			seenAuthors[item.Item.AuthorID] = struct{}{}
			item.Score += weight * 5
		}
	}
}

// applyNovelty gives posts younger than a day a bonus that decays linearly with age
func applyNovelty(items []models.ScoredItem, weight float64, now time.Time) {
	if weight == 0 {
		return
	}
	for i := range items {
		age := math.Max(0, items[i].Item.AgeHours(now))
		items[i].Score += weight * math.Max(0, 24-age) / 24 * 10
	}
}

func sortByScore(items []models.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}
