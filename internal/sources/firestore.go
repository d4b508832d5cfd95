package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

const (
	postsCollection        = "posts"
	usersCollection        = "users"
	interactionsCollection = "interactions"
	followingCollection    = "following"
	maxPageSize            = 300
	maxInteractions        = 500
)

// Relations accepted by SetFlag, GetFlag and ListFlags
const (
	RelationLikes = "likes"
	RelationMutes = "mutes"
)

// FirestoreSource reads the GreatTalk collections through the Firestore REST API
type FirestoreSource struct {
	projectID string
	client    *resty.Client
}

// Ensure FirestoreSource implements Source
var _ Source = (*FirestoreSource)(nil)

// NewFirestoreSource creates a new Firestore source. baseURL is normally
// https://firestore.googleapis.com/v1 and apiKey may be empty for emulators.
func NewFirestoreSource(baseURL, projectID, apiKey string) *FirestoreSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("User-Agent", "GreatTalk-Recommender/1.0")
	if apiKey != "" {
		client.SetQueryParam("key", apiKey)
	}

	return &FirestoreSource{
		projectID: projectID,
		client:    client,
	}
}

func (f *FirestoreSource) GetName() string {
	return "firestore"
}

func (f *FirestoreSource) IsEnabled() bool {
	return f.projectID != ""
}

func (f *FirestoreSource) documentsPath() string {
	return fmt.Sprintf("/projects/%s/databases/(default)/documents", f.projectID)
}

func (f *FirestoreSource) documentName(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return f.documentsPath() + "/" + path.Join(escaped...)
}

// ListContent pages through posts ordered by publication time, newest first
func (f *FirestoreSource) ListContent(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	var items []models.ContentItem
	pageToken := ""

	for len(items) < limit {
		pageSize := limit - len(items)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		page, err := f.listDocuments(ctx, f.documentName(postsCollection), pageSize, pageToken, "publishedAt desc")
		if err != nil {
			return nil, fmt.Errorf("failed to list posts: %w", err)
		}

		for _, doc := range page.Documents {
			items = append(items, doc.contentItem())
		}

		if page.NextPageToken == "" || len(page.Documents) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	logrus.Debugf("Loaded %d posts from Firestore", len(items))
	return items, nil
}

// ListInteractions runs a structured query for the user's AI conversation turns
func (f *FirestoreSource) ListInteractions(ctx context.Context, userID string) ([]models.InteractionRecord, error) {
	query := map[string]interface{}{
		"structuredQuery": map[string]interface{}{
			"from": []map[string]interface{}{{"collectionId": interactionsCollection}},
			"where": map[string]interface{}{
				"fieldFilter": map[string]interface{}{
					"field": map[string]string{"fieldPath": "userId"},
					"op":    "EQUAL",
					"value": map[string]string{"stringValue": userID},
				},
			},
			"limit": maxInteractions,
		},
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(query).
		Post(f.documentsPath() + ":runQuery")
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("firestore runQuery returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var rows []struct {
		Document *fsDocument `json:"document"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode interactions: %w", err)
	}

	var records []models.InteractionRecord
	for _, row := range rows {
		if row.Document == nil {
			continue
		}
		records = append(records, row.Document.interactionRecord())
	}

	return records, nil
}

// ListFollowing returns the IDs stored under users/{id}/following
func (f *FirestoreSource) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		page, err := f.listDocuments(ctx, f.documentName(usersCollection, userID, followingCollection), maxPageSize, pageToken, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list following for %s: %w", userID, err)
		}
		for _, doc := range page.Documents {
			ids = append(ids, doc.id())
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return ids, nil
}

// GetUser fetches one profile
func (f *FirestoreSource) GetUser(ctx context.Context, userID string) (models.UserProfile, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(f.documentName(usersCollection, userID))
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return models.UserProfile{}, ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return models.UserProfile{}, fmt.Errorf("firestore returned status %d for user %s", resp.StatusCode(), userID)
	}

	var doc fsDocument
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return models.UserProfile{}, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}

	return doc.userProfile(), nil
}

// ListUsers batch-fetches profiles; missing documents are skipped
func (f *FirestoreSource) ListUsers(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	names := make([]string, len(userIDs))
	for i, id := range userIDs {
		// batchGet wants names without the leading slash
		names[i] = f.documentName(usersCollection, id)[1:]
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"documents": names}).
		Post(f.documentsPath() + ":batchGet")
	if err != nil {
		return nil, fmt.Errorf("failed to batch get users: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("firestore batchGet returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var rows []struct {
		Found   *fsDocument `json:"found"`
		Missing string      `json:"missing"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	var users []models.UserProfile
	for _, row := range rows {
		if row.Found == nil {
			logrus.Debugf("User document missing: %s", row.Missing)
			continue
		}
		users = append(users, row.Found.userProfile())
	}

	return users, nil
}

// SetFlag writes users/{userID}/{relation}/{targetID} with an active marker
func (f *FirestoreSource) SetFlag(ctx context.Context, userID, relation, targetID string, on bool) error {
	if err := checkRelation(relation); err != nil {
		return err
	}

	body := map[string]interface{}{
		"fields": map[string]interface{}{
			"active":    map[string]bool{"booleanValue": on},
			"updatedAt": map[string]string{"timestampValue": time.Now().UTC().Format(time.RFC3339Nano)},
		},
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(body).
		Patch(f.documentName(usersCollection, userID, relation, targetID))
	if err != nil {
		return fmt.Errorf("failed to write %s for %s: %w", relation, userID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("firestore returned status %d writing %s: %s", resp.StatusCode(), relation, string(resp.Body()))
	}

	return nil
}

// GetFlag reads users/{userID}/{relation}/{targetID}. A missing document is inactive.
func (f *FirestoreSource) GetFlag(ctx context.Context, userID, relation, targetID string) (bool, error) {
	if err := checkRelation(relation); err != nil {
		return false, err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		Get(f.documentName(usersCollection, userID, relation, targetID))
	if err != nil {
		return false, fmt.Errorf("failed to read %s for %s: %w", relation, userID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("firestore returned status %d reading %s: %s", resp.StatusCode(), relation, string(resp.Body()))
	}

	var doc fsDocument
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return false, fmt.Errorf("failed to decode %s for %s: %w", relation, userID, err)
	}
	return doc.Fields.boolean("active"), nil
}

// ListFlags pages through users/{userID}/{relation} and keeps the active entries
func (f *FirestoreSource) ListFlags(ctx context.Context, userID, relation string) ([]string, error) {
	if err := checkRelation(relation); err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""

	for {
		page, err := f.listDocuments(ctx, f.documentName(usersCollection, userID, relation), maxPageSize, pageToken, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list %s for %s: %w", relation, userID, err)
		}
		for _, doc := range page.Documents {
			if doc.Fields.boolean("active") {
				ids = append(ids, doc.id())
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return ids, nil
}

func checkRelation(relation string) error {
	if relation != RelationLikes && relation != RelationMutes {
		return fmt.Errorf("unsupported relation %q", relation)
	}
	return nil
}

type listResponse struct {
	Documents     []fsDocument `json:"documents"`
	NextPageToken string       `json:"nextPageToken"`
}

func (f *FirestoreSource) listDocuments(ctx context.Context, collectionPath string, pageSize int, pageToken, orderBy string) (*listResponse, error) {
	req := f.client.R().
		SetContext(ctx).
		SetQueryParam("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		req.SetQueryParam("pageToken", pageToken)
	}
	if orderBy != "" {
		req.SetQueryParam("orderBy", orderBy)
	}

	resp, err := req.Get(collectionPath)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("firestore returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var page listResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
