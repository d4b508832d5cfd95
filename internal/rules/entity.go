package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greattalk/feed-recommender/internal/models"
)

// EntityKind names the entity variants rules can target
type EntityKind string

const (
	EntityContent     EntityKind = "content"
	EntityUser        EntityKind = "user"
	EntityInteraction EntityKind = "interaction"
)

// contextPrefix marks paths read from the caller-supplied context map
const contextPrefix = "context."

// Entity is one of ContentEntity, UserEntity or InteractionEntity
type Entity interface {
	Kind() EntityKind
	EntityID() string
	get(path string) Value
	with(path string, v Value) (Entity, error)
	withFlag(flag string) Entity
}

// ContentEntity wraps a post for rule evaluation
type ContentEntity struct {
	models.ContentItem
}

// UserEntity wraps a user profile for rule evaluation
type UserEntity struct {
	models.UserProfile
}

// InteractionEntity wraps an AI conversation turn for rule evaluation
type InteractionEntity struct {
	models.InteractionRecord
}

var (
	_ Entity = ContentEntity{}
	_ Entity = UserEntity{}
	_ Entity = InteractionEntity{}
)

// field reads and optionally writes one path of an entity type T.
// A nil set marks the field read-only.
type field[T any] struct {
	get func(T) Value
	set func(*T, Value) error
}

func numberSetter[T any](assign func(*T, float64)) func(*T, Value) error {
	return func(t *T, v Value) error {
		n, ok := v.AsNumber()
		if !ok {
			return fmt.Errorf("expected number, got %s", v.Kind())
		}
		assign(t, n)
		return nil
	}
}

func stringSetter[T any](assign func(*T, string)) func(*T, Value) error {
	return func(t *T, v Value) error {
		s, ok := v.AsString()
		if !ok {
			return fmt.Errorf("expected string, got %s", v.Kind())
		}
		assign(t, s)
		return nil
	}
}

func boolSetter[T any](assign func(*T, bool)) func(*T, Value) error {
	return func(t *T, v Value) error {
		b, ok := v.AsBool()
		if !ok {
			return fmt.Errorf("expected bool, got %s", v.Kind())
		}
		assign(t, b)
		return nil
	}
}

func stringsSetter[T any](assign func(*T, []string)) func(*T, Value) error {
	return func(t *T, v Value) error {
		ss, ok := v.AsStrings()
		if !ok {
			return fmt.Errorf("expected list of strings, got %s", v.Kind())
		}
		assign(t, ss)
		return nil
	}
}

var contentFields = map[string]field[models.ContentItem]{
	"id":        {get: func(c models.ContentItem) Value { return String(c.ID) }},
	"author_id": {get: func(c models.ContentItem) Value { return String(c.AuthorID) }},
	"content.title": {
		get: func(c models.ContentItem) Value { return String(c.Title) },
		set: stringSetter(func(c *models.ContentItem, s string) { c.Title = s }),
	},
	"content.description": {
		get: func(c models.ContentItem) Value { return String(c.Description) },
		set: stringSetter(func(c *models.ContentItem, s string) { c.Description = s }),
	},
	"content.system_prompt": {
		get: func(c models.ContentItem) Value { return String(c.SystemPrompt) },
		set: stringSetter(func(c *models.ContentItem, s string) { c.SystemPrompt = s }),
	},
	"quality.score": {
		get: func(c models.ContentItem) Value { return Number(c.QualityScore) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.QualityScore = n }),
	},
	"quality.safety": {
		get: func(c models.ContentItem) Value { return Number(c.SafetyScore) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.SafetyScore = n }),
	},
	"quality.reports": {
		get: func(c models.ContentItem) Value { return Number(float64(c.ReportCount)) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.ReportCount = int(n) }),
	},
	"quality.flags": {
		get: func(c models.ContentItem) Value { return Strings(c.ModerationFlags) },
		set: stringsSetter(func(c *models.ContentItem, ss []string) { c.ModerationFlags = ss }),
	},
	"engagement.interactions": {
		get: func(c models.ContentItem) Value { return Number(float64(c.InteractionCount)) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.InteractionCount = int(n) }),
	},
	"engagement.rate": {
		get: func(c models.ContentItem) Value { return Number(c.EngagementRate) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.EngagementRate = n }),
	},
	"engagement.trending": {
		get: func(c models.ContentItem) Value { return Number(c.TrendingScore) },
		set: numberSetter(func(c *models.ContentItem, n float64) { c.TrendingScore = n }),
	},
	"metadata.published_at": {
		get: func(c models.ContentItem) Value { return String(c.PublishedAt.UTC().Format(time.RFC3339)) },
	},
	"metadata.is_public": {
		get: func(c models.ContentItem) Value { return Bool(c.IsPublic) },
		set: boolSetter(func(c *models.ContentItem, b bool) { c.IsPublic = b }),
	},
	"metadata.is_trending": {
		get: func(c models.ContentItem) Value { return Bool(c.IsTrending) },
		set: boolSetter(func(c *models.ContentItem, b bool) { c.IsTrending = b }),
	},
	"metadata.categories": {
		get: func(c models.ContentItem) Value { return Strings(c.Categories) },
		set: stringsSetter(func(c *models.ContentItem, ss []string) { c.Categories = ss }),
	},
	"metadata.tags": {
		get: func(c models.ContentItem) Value {
			names := make([]string, len(c.Tags))
			for i, t := range c.Tags {
				names[i] = t.Name
			}
			return Strings(names)
		},
		set: stringsSetter(func(c *models.ContentItem, ss []string) {
			c.Tags = make([]models.Tag, len(ss))
			for i, s := range ss {
				c.Tags[i] = models.Tag{Name: s}
			}
		}),
	},
}

var userFields = map[string]field[models.UserProfile]{
	"id": {get: func(u models.UserProfile) Value { return String(u.ID) }},
	"social.activity_score": {
		get: func(u models.UserProfile) Value { return Number(u.ActivityScore) },
		set: numberSetter(func(u *models.UserProfile, n float64) { u.ActivityScore = n }),
	},
	"social.influence_level": {
		get: func(u models.UserProfile) Value { return String(u.InfluenceLevel().String()) },
	},
	"social.influence_rank": {
		get: func(u models.UserProfile) Value { return Number(float64(u.InfluenceLevel())) },
	},
	"stats.post_count": {
		get: func(u models.UserProfile) Value { return Number(float64(u.PostCount)) },
		set: numberSetter(func(u *models.UserProfile, n float64) { u.PostCount = int(n) }),
	},
	"stats.engagement_rate": {
		get: func(u models.UserProfile) Value { return Number(u.EngagementRate) },
		set: numberSetter(func(u *models.UserProfile, n float64) { u.EngagementRate = n }),
	},
}

var interactionFields = map[string]field[models.InteractionRecord]{
	"id":         {get: func(r models.InteractionRecord) Value { return String(r.ID) }},
	"user_id":    {get: func(r models.InteractionRecord) Value { return String(r.UserID) }},
	"content_id": {get: func(r models.InteractionRecord) Value { return String(r.ContentID) }},
	"prompt": {
		get: func(r models.InteractionRecord) Value { return String(r.Prompt) },
		set: stringSetter(func(r *models.InteractionRecord, s string) { r.Prompt = s }),
	},
	"response": {
		get: func(r models.InteractionRecord) Value { return String(r.Response) },
		set: stringSetter(func(r *models.InteractionRecord, s string) { r.Response = s }),
	},
	"response_time_ms": {
		get: func(r models.InteractionRecord) Value { return Number(r.ResponseTimeMs) },
		set: numberSetter(func(r *models.InteractionRecord, n float64) { r.ResponseTimeMs = n }),
	},
	"quality.relevance": {
		get: func(r models.InteractionRecord) Value { return Number(r.Relevance) },
		set: numberSetter(func(r *models.InteractionRecord, n float64) { r.Relevance = n }),
	},
	"quality.helpfulness": {
		get: func(r models.InteractionRecord) Value { return Number(r.Helpfulness) },
		set: numberSetter(func(r *models.InteractionRecord, n float64) { r.Helpfulness = n }),
	},
	"quality.accuracy": {
		get: func(r models.InteractionRecord) Value { return Number(r.Accuracy) },
		set: numberSetter(func(r *models.InteractionRecord, n float64) { r.Accuracy = n }),
	},
	"quality.overall": {
		get: func(r models.InteractionRecord) Value { return Number(r.Quality()) },
	},
}

// FieldPath is a dotted field reference that has been checked against an entity kind
type FieldPath struct {
	raw     string
	context bool
}

func (p FieldPath) String() string { return p.raw }

// IsContext reports whether the path reads from the evaluation context
func (p FieldPath) IsContext() bool { return p.context }

func (p FieldPath) contextKey() string { return strings.TrimPrefix(p.raw, contextPrefix) }

// ParsePath validates a path for the given kind. Context paths are accepted for every kind.
func ParsePath(kind EntityKind, raw string) (FieldPath, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, contextPrefix) {
		if len(raw) == len(contextPrefix) {
			return FieldPath{}, fmt.Errorf("empty context key")
		}
		return FieldPath{raw: raw, context: true}, nil
	}

	if _, ok := lookupField(kind, raw); !ok {
		return FieldPath{}, fmt.Errorf("unknown %s field %q (known: %s)", kind, raw, strings.Join(Fields(kind), ", "))
	}
	return FieldPath{raw: raw}, nil
}

// ParseWritablePath validates a path that a modify action may assign
func ParseWritablePath(kind EntityKind, raw string) (FieldPath, error) {
	path, err := ParsePath(kind, raw)
	if err != nil {
		return FieldPath{}, err
	}
	if path.context {
		return FieldPath{}, fmt.Errorf("context path %q is read-only", raw)
	}
	if writable, _ := lookupField(kind, raw); !writable {
		return FieldPath{}, fmt.Errorf("%s field %q is read-only", kind, raw)
	}
	return path, nil
}

// Fields lists the known paths for a kind
func Fields(kind EntityKind) []string {
	var names []string
	switch kind {
	case EntityContent:
		for name := range contentFields {
			names = append(names, name)
		}
	case EntityUser:
		for name := range userFields {
			names = append(names, name)
		}
	case EntityInteraction:
		for name := range interactionFields {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func lookupField(kind EntityKind, path string) (writable, ok bool) {
	switch kind {
	case EntityContent:
		f, found := contentFields[path]
		return found && f.set != nil, found
	case EntityUser:
		f, found := userFields[path]
		return found && f.set != nil, found
	case EntityInteraction:
		f, found := interactionFields[path]
		return found && f.set != nil, found
	}
	return false, false
}

// read resolves a path against an entity and the evaluation context
func read(e Entity, path FieldPath, ctx map[string]interface{}) Value {
	if path.context {
		v, err := FromAny(ctx[path.contextKey()])
		if err != nil {
			return Null()
		}
		return v
	}
	return e.get(path.raw)
}

func (e ContentEntity) Kind() EntityKind { return EntityContent }
func (e ContentEntity) EntityID() string { return e.ID }

func (e ContentEntity) get(path string) Value {
	if f, ok := contentFields[path]; ok {
		return f.get(e.ContentItem)
	}
	return Null()
}

func (e ContentEntity) with(path string, v Value) (Entity, error) {
	f, ok := contentFields[path]
	if !ok || f.set == nil {
		return e, fmt.Errorf("content field %q is not writable", path)
	}
	item := e.ContentItem.Clone()
	if err := f.set(&item, v); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	return ContentEntity{item}, nil
}

func (e ContentEntity) withFlag(flag string) Entity {
	item := e.ContentItem.Clone()
	for _, f := range item.ModerationFlags {
		if f == flag {
			return ContentEntity{item}
		}
	}
	item.ModerationFlags = append(item.ModerationFlags, flag)
	return ContentEntity{item}
}

func (e UserEntity) Kind() EntityKind { return EntityUser }
func (e UserEntity) EntityID() string { return e.ID }

func (e UserEntity) get(path string) Value {
	if f, ok := userFields[path]; ok {
		return f.get(e.UserProfile)
	}
	return Null()
}

func (e UserEntity) with(path string, v Value) (Entity, error) {
	f, ok := userFields[path]
	if !ok || f.set == nil {
		return e, fmt.Errorf("user field %q is not writable", path)
	}
	user := e.UserProfile
	if err := f.set(&user, v); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	return UserEntity{user}, nil
}

// Users carry no flag list; flags only appear in the execution result
func (e UserEntity) withFlag(string) Entity { return e }

func (e InteractionEntity) Kind() EntityKind { return EntityInteraction }
func (e InteractionEntity) EntityID() string { return e.ID }

func (e InteractionEntity) get(path string) Value {
	if f, ok := interactionFields[path]; ok {
		return f.get(e.InteractionRecord)
	}
	return Null()
}

func (e InteractionEntity) with(path string, v Value) (Entity, error) {
	f, ok := interactionFields[path]
	if !ok || f.set == nil {
		return e, fmt.Errorf("interaction field %q is not writable", path)
	}
	rec := e.InteractionRecord
	if err := f.set(&rec, v); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	return InteractionEntity{rec}, nil
}

func (e InteractionEntity) withFlag(string) Entity { return e }
