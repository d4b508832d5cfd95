package recommendation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func set(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("What is the Stoic view of ANGER? Stoic-ism, 2 views & x")

	assert.Equal(t, set("stoic", "view", "anger", "ism", "views"), tokens)
	assert.Empty(t, tokenize(""))
	assert.Empty(t, tokenize("the a of"))
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[string]struct{}
		expected float64
	}{
		{name: "Identical", a: set("go", "rust"), b: set("rust", "go"), expected: 1},
		{name: "Disjoint", a: set("go"), b: set("rust"), expected: 0},
		{name: "Partial", a: set("go", "rust"), b: set("go", "zig", "c"), expected: 0.25},
		{name: "Left empty", a: set(), b: set("go"), expected: 0},
		{name: "Both empty", a: set(), b: set(), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Jaccard(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.expected, Jaccard(tt.b, tt.a), 1e-9)
		})
	}
}

func TestJaccard_Bounds(t *testing.T) {
	vocabulary := []string{"ai", "art", "code", "ethics", "film", "go", "music", "poetry"}
	rng := rand.New(rand.NewSource(7))

	randomSet := func() map[string]struct{} {
		out := set()
		for _, w := range vocabulary {
			if rng.Intn(2) == 0 {
				out[w] = struct{}{}
			}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		a, b := randomSet(), randomSet()
		sim := Jaccard(a, b)

		assert.GreaterOrEqual(t, sim, 0.0)
		assert.LessOrEqual(t, sim, 1.0)

		identical := len(a) > 0 && len(a) == len(b)
		for k := range a {
			if _, ok := b[k]; !ok {
				identical = false
			}
		}
		if sim == 1 {
			assert.True(t, identical, "similarity 1 requires identical non-empty sets")
		}
		if identical {
			assert.Equal(t, 1.0, sim)
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 0.5, overlapRatio(set("stoicism", "ethics"), set("stoicism", "tutor")), 1e-9)
	assert.Equal(t, 0.0, overlapRatio(set(), set("stoicism")))
	assert.Equal(t, 0.0, overlapRatio(set("stoicism"), set()))
}
