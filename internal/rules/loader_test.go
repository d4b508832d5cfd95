package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
rules:
  - id: tutor-boost
    name: Tutor boost
    entity: content
    priority: 20
    conditions:
      - field: metadata.categories
        operator: contains
        value: education
      - field: quality.score
        operator: greater_than
        value: 0.7
        logic: and
    actions:
      - type: enhance
        target: boost
        value: 1.5
  - id: retired
    name: Retired rule
    entity: user
    active: false
    conditions: []
    actions: []
`

func TestParse(t *testing.T) {
	rules, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	boost := rules[0]
	assert.Equal(t, "tutor-boost", boost.ID)
	assert.Equal(t, EntityContent, boost.Entity)
	assert.True(t, boost.Active, "active defaults to true")
	require.Len(t, boost.Conditions, 2)
	assert.True(t, boost.Conditions[1].Value.Equal(Number(0.7)))
	assert.Equal(t, Logic("and"), boost.Conditions[1].Logic)
	assert.False(t, rules[1].Active)

	engine, err := NewEngine(rules, nil)
	require.NoError(t, err)
	assert.Empty(t, engine.Rules(EntityUser))

	results := engine.ExecuteContentRules(models.ContentItem{Categories: []string{"education"}, QualityScore: 0.9}, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Matched)
	assert.Equal(t, 1.5, results[0].Enrichments["boost"])
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("rules: [: nope"))
	assert.Error(t, err)

	_, err = Parse([]byte("rules:\n  - id: x\n    conditions:\n      - value: {a: 1}\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	data, err := Marshal(DefaultRules())
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed, len(DefaultRules()))

	for i, rule := range DefaultRules() {
		assert.Equal(t, rule.ID, parsed[i].ID)
		require.Len(t, parsed[i].Conditions, len(rule.Conditions))
		for j, cond := range rule.Conditions {
			assert.True(t, cond.Value.Equal(parsed[i].Conditions[j].Value), "%s condition %d", rule.ID, j)
		}
	}

	_, err = NewEngine(parsed, nil)
	assert.NoError(t, err)
}
