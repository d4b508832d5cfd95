package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Operator compares an entity field with a rule value
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpRegex       Operator = "regex"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Logic joins a condition to the result of the conditions written before it
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ActionType selects what a matched rule does
type ActionType string

const (
	ActionModify  ActionType = "modify"
	ActionFlag    ActionType = "flag"
	ActionEnhance ActionType = "enhance"
)

// Condition tests one field. Logic is ignored on the first condition of a rule.
type Condition struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    Value    `yaml:"value" json:"value"`
	Logic    Logic    `yaml:"logic,omitempty" json:"logic,omitempty"`
}

// Action is applied when a rule matches. Target is a field path for modify,
// ignored for flag, and the enrichment key for enhance.
type Action struct {
	Type   ActionType `yaml:"type" json:"type"`
	Target string     `yaml:"target,omitempty" json:"target,omitempty"`
	Value  Value      `yaml:"value" json:"value"`
}

// BusinessRule is a declarative rule over one entity kind
type BusinessRule struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Entity      EntityKind  `yaml:"entity" json:"entity"`
	Conditions  []Condition `yaml:"conditions" json:"conditions"`
	Actions     []Action    `yaml:"actions" json:"actions"`
	Priority    int         `yaml:"priority" json:"priority"`
	Active      bool        `yaml:"active" json:"active"`
}

// UnmarshalYAML treats a missing active key as true
func (r *BusinessRule) UnmarshalYAML(node *yaml.Node) error {
	type plain BusinessRule
	p := plain{Active: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = BusinessRule(p)
	return nil
}

// RuleExecutionResult is the outcome of one evaluated rule. Entity holds the value the
// rule's actions produced, or the input unchanged when the rule did not match.
type RuleExecutionResult struct {
	RuleID        string                 `json:"rule_id"`
	RuleName      string                 `json:"rule_name"`
	Matched       bool                   `json:"matched"`
	Entity        Entity                 `json:"entity"`
	Flags         []string               `json:"flags"`
	Enrichments   map[string]interface{} `json:"enrichments"`
	Modifications map[string]interface{} `json:"modifications"`
	Errors        []string               `json:"errors,omitempty"`
}

type compiledCondition struct {
	path  FieldPath
	op    Operator
	value Value
	logic Logic
	re    *regexp.Regexp
}

type compiledAction struct {
	kind   ActionType
	path   FieldPath
	target string
	value  Value
}

type compiledRule struct {
	rule       BusinessRule
	conditions []compiledCondition
	actions    []compiledAction
}

// Engine evaluates compiled rule sets. It is immutable after construction.
type Engine struct {
	rules     map[EntityKind][]compiledRule
	collector *metrics.Collector
}

// NewEngine validates and compiles the rules. Inactive rules are kept out of the engine.
func NewEngine(rules []BusinessRule, collector *metrics.Collector) (*Engine, error) {
	e := &Engine{
		rules:     make(map[EntityKind][]compiledRule),
		collector: collector,
	}

	seen := make(map[string]struct{})
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}

		if !r.Active {
			logrus.Debugf("Skipping inactive rule %s", r.ID)
			continue
		}

		compiled, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		e.rules[r.Entity] = append(e.rules[r.Entity], compiled)
	}

	for kind := range e.rules {
		list := e.rules[kind]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].rule.Priority > list[j].rule.Priority
		})
	}

	return e, nil
}

func compileRule(r BusinessRule) (compiledRule, error) {
	switch r.Entity {
	case EntityContent, EntityUser, EntityInteraction:
	default:
		return compiledRule{}, fmt.Errorf("unknown entity kind %q", r.Entity)
	}

	out := compiledRule{rule: r}
	for i, c := range r.Conditions {
		path, err := ParsePath(r.Entity, c.Field)
		if err != nil {
			return compiledRule{}, fmt.Errorf("condition %d: %w", i, err)
		}

		cc := compiledCondition{path: path, op: c.Operator, value: c.Value, logic: c.Logic}
		switch c.Operator {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpIn, OpNotIn:
		case OpRegex:
			pattern, _ := c.Value.AsString()
			if re, err := regexp.Compile(pattern); err != nil {
				logrus.Warnf("Rule %s condition %d: invalid pattern %q never matches: %v", r.ID, i, pattern, err)
			} else {
				cc.re = re
			}
		default:
			return compiledRule{}, fmt.Errorf("condition %d: unknown operator %q", i, c.Operator)
		}

		switch strings.ToUpper(string(c.Logic)) {
		case "", string(LogicAnd):
			cc.logic = LogicAnd
		case string(LogicOr):
			cc.logic = LogicOr
		default:
			return compiledRule{}, fmt.Errorf("condition %d: unknown logic %q", i, c.Logic)
		}

		out.conditions = append(out.conditions, cc)
	}

	for i, a := range r.Actions {
		ca := compiledAction{kind: a.Type, target: a.Target, value: a.Value}
		switch a.Type {
		case ActionModify:
			path, err := ParseWritablePath(r.Entity, a.Target)
			if err != nil {
				return compiledRule{}, fmt.Errorf("action %d: %w", i, err)
			}
			ca.path = path
		case ActionFlag:
			if s, ok := a.Value.AsString(); !ok || s == "" {
				return compiledRule{}, fmt.Errorf("action %d: flag value must be a non-empty string", i)
			}
		case ActionEnhance:
			if a.Target == "" {
				return compiledRule{}, fmt.Errorf("action %d: enhance needs a target key", i)
			}
		default:
			return compiledRule{}, fmt.Errorf("action %d: unknown action type %q", i, a.Type)
		}
		out.actions = append(out.actions, ca)
	}

	return out, nil
}

// Rules returns the active rules for a kind in evaluation order
func (e *Engine) Rules(kind EntityKind) []BusinessRule {
	out := make([]BusinessRule, 0, len(e.rules[kind]))
	for _, c := range e.rules[kind] {
		out = append(out, c.rule)
	}
	return out
}

// Execute evaluates every active rule for the entity's kind, highest priority first.
// Each rule sees the original entity; results are not chained.
func (e *Engine) Execute(entity Entity, ctx map[string]interface{}) []RuleExecutionResult {
	compiled := e.rules[entity.Kind()]
	results := make([]RuleExecutionResult, 0, len(compiled))

	for _, c := range compiled {
		result := RuleExecutionResult{
			RuleID:        c.rule.ID,
			RuleName:      c.rule.Name,
			Entity:        entity,
			Flags:         []string{},
			Enrichments:   map[string]interface{}{},
			Modifications: map[string]interface{}{},
		}

		result.Matched = c.matches(entity, ctx)
		e.collector.ObserveRule(string(entity.Kind()), result.Matched)
		if result.Matched {
			c.apply(&result)
		}

		results = append(results, result)
	}

	return results
}

// ExecuteUserRules evaluates the user rule set
func (e *Engine) ExecuteUserRules(user models.UserProfile, ctx map[string]interface{}) []RuleExecutionResult {
	return e.Execute(UserEntity{user}, ctx)
}

// ExecuteContentRules evaluates the content rule set
func (e *Engine) ExecuteContentRules(item models.ContentItem, ctx map[string]interface{}) []RuleExecutionResult {
	return e.Execute(ContentEntity{item}, ctx)
}

// ExecuteInteractionRules evaluates the interaction rule set
func (e *Engine) ExecuteInteractionRules(rec models.InteractionRecord, ctx map[string]interface{}) []RuleExecutionResult {
	return e.Execute(InteractionEntity{rec}, ctx)
}

// matches folds the conditions left to right in written order. A rule without
// conditions always matches.
func (c compiledRule) matches(entity Entity, ctx map[string]interface{}) bool {
	result := true
	for i, cond := range c.conditions {
		ok := cond.evaluate(read(entity, cond.path, ctx))
		switch {
		case i == 0:
			result = ok
		case cond.logic == LogicOr:
			result = result || ok
		default:
			result = result && ok
		}
	}
	return result
}

func (c compiledRule) apply(result *RuleExecutionResult) {
	for _, a := range c.actions {
		switch a.kind {
		case ActionModify:
			next, err := result.Entity.with(a.path.String(), a.value)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Entity = next
			result.Modifications[a.path.String()] = a.value.Interface()
		case ActionFlag:
			flag, _ := a.value.AsString()
			result.Flags = append(result.Flags, flag)
			result.Entity = result.Entity.withFlag(flag)
		case ActionEnhance:
			result.Enrichments[a.target] = a.value.Interface()
		}
	}
}

func (cond compiledCondition) evaluate(actual Value) bool {
	switch cond.op {
	case OpEquals:
		return actual.Equal(cond.value)
	case OpNotEquals:
		return !actual.Equal(cond.value)
	case OpGreaterThan, OpLessThan:
		a, okA := actual.AsNumber()
		b, okB := cond.value.AsNumber()
		if !okA || !okB {
			return false
		}
		if cond.op == OpGreaterThan {
			return a > b
		}
		return a < b
	case OpContains:
		return contains(actual, cond.value)
	case OpRegex:
		if cond.re == nil {
			return false
		}
		if actual.Kind() == KindList {
			for _, e := range actual.Items() {
				if s, ok := e.AsString(); ok && cond.re.MatchString(s) {
					return true
				}
			}
			return false
		}
		s, ok := actual.AsString()
		return ok && cond.re.MatchString(s)
	case OpIn:
		return in(actual, cond.value)
	case OpNotIn:
		return !in(actual, cond.value)
	}
	return false
}

// contains is substring match for strings and membership for lists
func contains(actual, want Value) bool {
	switch actual.Kind() {
	case KindString:
		s, _ := actual.AsString()
		w, ok := want.AsString()
		return ok && strings.Contains(s, w)
	case KindList:
		for _, e := range actual.Items() {
			if e.Equal(want) {
				return true
			}
		}
	}
	return false
}

// in reports whether a scalar is one of the listed values, or whether a list shares
// any element with them
func in(actual, set Value) bool {
	if set.Kind() != KindList {
		return false
	}
	candidates := []Value{actual}
	if actual.Kind() == KindList {
		candidates = actual.Items()
	}
	for _, a := range candidates {
		for _, s := range set.Items() {
			if a.Equal(s) {
				return true
			}
		}
	}
	return false
}
