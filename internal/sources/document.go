package sources

import (
	"strconv"
	"strings"
	"time"

	"github.com/greattalk/feed-recommender/internal/models"
)

// fsValue mirrors the Firestore REST typed value encoding
type fsValue struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	BooleanValue   *bool    `json:"booleanValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
	ArrayValue     *struct {
		Values []fsValue `json:"values"`
	} `json:"arrayValue,omitempty"`
	MapValue *struct {
		Fields fsFields `json:"fields"`
	} `json:"mapValue,omitempty"`
}

type fsFields map[string]fsValue

type fsDocument struct {
	Name       string   `json:"name"`
	Fields     fsFields `json:"fields"`
	CreateTime string   `json:"createTime"`
}

// id is the last segment of the document name
func (d fsDocument) id() string {
	if i := strings.LastIndex(d.Name, "/"); i >= 0 {
		return d.Name[i+1:]
	}
	return d.Name
}

func (d fsDocument) contentItem() models.ContentItem {
	f := d.Fields
	published := f.timestamp("publishedAt")
	if published.IsZero() {
		published = f.timestamp("createdAt")
	}
	if published.IsZero() {
		published, _ = time.Parse(time.RFC3339Nano, d.CreateTime)
	}

	return models.ContentItem{
		ID:               d.id(),
		AuthorID:         f.str("authorId"),
		Title:            f.str("title"),
		Description:      f.str("description"),
		SystemPrompt:     f.str("systemPrompt"),
		QualityScore:     f.num("qualityScore"),
		ModerationFlags:  f.strings("moderationFlags"),
		SafetyScore:      f.num("safetyScore"),
		ReportCount:      int(f.num("reportCount")),
		InteractionCount: int(f.num("interactionCount")),
		EngagementRate:   f.num("engagementRate"),
		TrendingScore:    f.num("trendingScore"),
		PublishedAt:      published,
		IsPublic:         f.boolean("isPublic"),
		IsTrending:       f.boolean("isTrending"),
		Categories:       f.strings("categories"),
		Tags:             f.tags("tags"),
	}
}

func (d fsDocument) userProfile() models.UserProfile {
	f := d.Fields
	return models.UserProfile{
		ID:             d.id(),
		ActivityScore:  f.num("activityScore"),
		PostCount:      int(f.num("postCount")),
		EngagementRate: f.num("engagementRate"),
	}
}

func (d fsDocument) interactionRecord() models.InteractionRecord {
	f := d.Fields
	return models.InteractionRecord{
		ID:             d.id(),
		UserID:         f.str("userId"),
		ContentID:      f.str("postId"),
		Prompt:         f.str("prompt"),
		Response:       f.str("response"),
		ResponseTimeMs: f.num("responseTime"),
		Relevance:      f.num("relevance"),
		Helpfulness:    f.num("helpfulness"),
		Accuracy:       f.num("accuracy"),
		CreatedAt:      f.timestamp("createdAt"),
	}
}

func (f fsFields) str(name string) string {
	if v, ok := f[name]; ok && v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

// num reads integer or double values; integers arrive as strings
func (f fsFields) num(name string) float64 {
	v, ok := f[name]
	if !ok {
		return 0
	}
	switch {
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	return 0
}

func (f fsFields) boolean(name string) bool {
	if v, ok := f[name]; ok && v.BooleanValue != nil {
		return *v.BooleanValue
	}
	return false
}

func (f fsFields) timestamp(name string) time.Time {
	v, ok := f[name]
	if !ok || v.TimestampValue == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (f fsFields) strings(name string) []string {
	v, ok := f[name]
	if !ok || v.ArrayValue == nil {
		return nil
	}
	var out []string
	for _, el := range v.ArrayValue.Values {
		if el.StringValue != nil {
			out = append(out, *el.StringValue)
		}
	}
	return out
}

func (f fsFields) tags(name string) []models.Tag {
	v, ok := f[name]
	if !ok || v.ArrayValue == nil {
		return nil
	}
	var out []models.Tag
	for _, el := range v.ArrayValue.Values {
		switch {
		case el.MapValue != nil:
			out = append(out, models.Tag{
				Name:     el.MapValue.Fields.str("name"),
				Category: el.MapValue.Fields.str("category"),
			})
		case el.StringValue != nil:
			out = append(out, models.Tag{Name: *el.StringValue})
		}
	}
	return out
}
