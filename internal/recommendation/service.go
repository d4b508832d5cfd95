package recommendation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/greattalk/feed-recommender/internal/cache"
	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/moderation"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/greattalk/feed-recommender/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrMissingUser is returned when a request names no user
var ErrMissingUser = errors.New("user_id is required")

// Provider is the read side of the document store used to assemble a request
type Provider interface {
	sources.ContentProvider
	sources.InteractionProvider
	sources.FollowProvider
	sources.UserProvider
}

// Service produces recommendation lists
type Service struct {
	config    *config.Config
	provider  Provider
	storage   storage.StorageInterface
	evaluator *moderation.Evaluator
	cache     *cache.Cache
	collector *metrics.Collector
	location  *time.Location
	now       func() time.Time
	metrics   *Metrics
	mu        sync.RWMutex
}

// Metrics holds recommendation metrics
type Metrics struct {
	TotalRequests   int            `json:"total_requests"`
	CacheHits       int            `json:"cache_hits"`
	LastRun         time.Time      `json:"last_run"`
	LastRunDuration string         `json:"last_run_duration"`
	AlgorithmRuns   map[string]int `json:"algorithm_runs"`
	RejectedItems   int            `json:"rejected_items"`
	ProviderErrors  int            `json:"provider_errors"`
	CacheEntries    int            `json:"cache_entries"`
}

// NewService creates a new recommendation service. storage and collector may be nil.
func NewService(cfg *config.Config, provider Provider, storage storage.StorageInterface,
	evaluator *moderation.Evaluator, resultCache *cache.Cache, collector *metrics.Collector) *Service {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logrus.Warnf("Unknown time zone %q, using UTC", cfg.TimeZone)
		location = time.UTC
	}

	return &Service{
		config:    cfg,
		provider:  provider,
		storage:   storage,
		evaluator: evaluator,
		cache:     resultCache,
		collector: collector,
		location:  location,
		now:       time.Now,
		metrics: &Metrics{
			AlgorithmRuns: make(map[string]int),
		},
	}
}

// GenerateRecommendations runs the scoring pipeline over already-resolved inputs:
// candidate filter, selected algorithms, ensemble, moderation, truncation.
func (s *Service) GenerateRecommendations(req models.RecommendationRequest, user models.UserProfile,
	items []models.ContentItem, interactions []models.InteractionRecord, followed []string,
	authors []models.UserProfile) *models.RecommendationResult {
	start := s.now()
	now := start.In(s.location)

	candidates := FilterCandidates(items, req.ExcludeIDs)

	ctx := NewContext(now, followed, authors)
	ctx.IncludeFollowing = req.IncludeFollowing
	ctx.IncludeTrending = req.IncludeTrending

	results, ran := runAlgorithms(user, candidates, interactions, ctx)
	lists := make([][]models.ScoredItem, 0, len(ran))
	for _, name := range ran {
		lists = append(lists, results[name])
	}

	combined := Combine(lists, s.weights(req), now)
	approved, rejected := s.evaluator.Filter(combined)

	if limit := s.limit(req); len(approved) > limit {
		approved = approved[:limit]
	}

	explanation := make([]string, 0, len(ran)+1)
	for _, name := range ran {
		explanation = append(explanation, fmt.Sprintf("%s scored %d of %d candidates", name, len(results[name]), len(candidates)))
	}
	explanation = append(explanation, fmt.Sprintf("moderation removed %d items", rejected))

	result := &models.RecommendationResult{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Items:       approved,
		Algorithm:   models.AlgorithmEnsemble,
		Confidence:  confidence(approved),
		Explanation: explanation,
		Metadata: models.RecommendationMetadata{
			Algorithms:     ran,
			CandidateCount: len(candidates),
			RejectedCount:  rejected,
			UserInfluence:  user.InfluenceLevel().String(),
			GeneratedAt:    start,
			ProcessingTime: s.now().Sub(start),
		},
	}
	if result.Items == nil {
		result.Items = []models.ScoredItem{}
	}

	s.recordRun(ran, rejected)
	return result
}

// Recommend resolves the user's data through the provider and runs the pipeline.
// Provider failures degrade to empty inputs. Results are cached per request
// unless a fetch failed, so a recovered upstream is picked up on the next call.
func (s *Service) Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	req.Limit = s.limit(req)
	start := s.now()

	key, err := cache.Key("recommend", req)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache key: %w", err)
	}

	value, hit, err := s.cache.GetOrCompute(key, func() (interface{}, error) {
		result, degraded := s.compute(ctx, req)
		if degraded {
			return nil, &degradedResult{result: result}
		}
		return result, nil
	})
	var partial *degradedResult
	if errors.As(err, &partial) {
		value, err = partial.result, nil
	}
	if err != nil {
		return nil, err
	}

	result := *value.(*models.RecommendationResult)
	result.Metadata.CacheHit = hit

	elapsed := s.now().Sub(start)
	s.collector.ObserveRecommendation(elapsed, len(result.Items), hit)
	s.recordRequest(hit, elapsed)

	logrus.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"result_id":  result.ID,
		"items":      len(result.Items),
		"cache_hit":  hit,
		"degraded":   partial != nil,
		"algorithms": result.Metadata.Algorithms,
	}).Info("Served recommendations")

	return &result, nil
}

// degradedResult carries a result built from partial inputs past the cache
type degradedResult struct {
	result *models.RecommendationResult
}

func (e *degradedResult) Error() string {
	return "recommendation built from partial inputs"
}

// compute runs the pipeline and reports whether any input fetch failed
func (s *Service) compute(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, bool) {
	in, degraded := s.gather(ctx, req)
	result := s.GenerateRecommendations(req, in.user, in.items, in.interactions, in.followed, in.authors)
	s.archive(ctx, result)
	return result, degraded || ctx.Err() != nil
}

type pipelineInput struct {
	user         models.UserProfile
	items        []models.ContentItem
	interactions []models.InteractionRecord
	followed     []string
	authors      []models.UserProfile
}

// gather fetches the inputs concurrently. Each failed fetch leaves an empty
// collection and sets the returned flag.
func (s *Service) gather(ctx context.Context, req models.RecommendationRequest) (pipelineInput, bool) {
	in := pipelineInput{user: models.UserProfile{ID: req.UserID}}
	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	fail := func(provider string, err error) {
		failed.Store(true)
		s.providerFailed(provider, err)
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		user, err := s.provider.GetUser(ctx, req.UserID)
		if err != nil {
			fail("users", err)
			return
		}
		in.user = user
	}()
	go func() {
		defer wg.Done()
		items, err := s.provider.ListContent(ctx, s.config.PoolSize)
		if err != nil {
			fail("content", err)
			return
		}
		in.items = items
	}()
	go func() {
		defer wg.Done()
		interactions, err := s.provider.ListInteractions(ctx, req.UserID)
		if err != nil {
			fail("interactions", err)
			return
		}
		in.interactions = interactions
	}()

	if req.IncludeFollowing {
		wg.Add(1)
		go func() {
			defer wg.Done()
			followed, err := s.provider.ListFollowing(ctx, req.UserID)
			if err != nil {
				fail("following", err)
				return
			}
			in.followed = followed
		}()
	}
	wg.Wait()

	if ids := authorIDs(in.items); len(ids) > 0 {
		authors, err := s.provider.ListUsers(ctx, ids)
		if err != nil {
			fail("authors", err)
		} else {
			in.authors = authors
		}
	}

	return in, failed.Load()
}

func (s *Service) providerFailed(provider string, err error) {
	logrus.WithField("provider", provider).Warnf("Fetch failed, continuing with empty result: %v", err)
	s.collector.ProviderError(provider)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ProviderErrors++
}

func (s *Service) archive(ctx context.Context, result *models.RecommendationResult) {
	if s.storage == nil {
		return
	}
	name := storage.ArchiveName("recommendations", result.Metadata.GeneratedAt, result.ID)
	if err := storage.StoreJSON(ctx, s.storage, name, result); err != nil {
		logrus.Errorf("Failed to archive recommendation run %s: %v", result.ID, err)
	}
}

// ExecuteModeration evaluates one post with the service's moderation rules
func (s *Service) ExecuteModeration(item models.ContentItem) moderation.Result {
	result := s.evaluator.Evaluate(item)
	s.collector.ObserveModeration(result.IsApproved)
	return result
}

// PurgeCache drops every cached result
func (s *Service) PurgeCache() int {
	n := s.cache.Purge()
	logrus.Debugf("Purged %d cached recommendation results", n)
	return n
}

func (s *Service) weights(req models.RecommendationRequest) Weights {
	w := Weights{Diversity: s.config.DiversityWeight, Novelty: s.config.NoveltyWeight}
	if req.DiversityWeight != nil {
		w.Diversity = *req.DiversityWeight
	}
	if req.NoveltyWeight != nil {
		w.Novelty = *req.NoveltyWeight
	}
	return w
}

func (s *Service) limit(req models.RecommendationRequest) int {
	switch {
	case req.Limit <= 0:
		return s.config.DefaultLimit
	case s.config.MaxLimit > 0 && req.Limit > s.config.MaxLimit:
		return s.config.MaxLimit
	default:
		return req.Limit
	}
}

func (s *Service) recordRun(ran []string, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range ran {
		s.metrics.AlgorithmRuns[name]++
	}
	s.metrics.RejectedItems += rejected
}

func (s *Service) recordRequest(hit bool, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRequests++
	if hit {
		s.metrics.CacheHits++
	}
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := *s.metrics
	snapshot.CacheEntries = s.cache.Len()

	data, _ := json.MarshalIndent(snapshot, "", "  ")
	return string(data)
}

// confidence is the mean of min(1, score/100) over the final items
func confidence(items []models.ScoredItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var total float64
	for _, it := range items {
		total += math.Min(1, math.Max(0, it.Score/100))
	}
	return total / float64(len(items))
}

func authorIDs(items []models.ContentItem) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, it := range items {
		if it.AuthorID == "" {
			continue
		}
		if _, ok := seen[it.AuthorID]; ok {
			continue
		}
		seen[it.AuthorID] = struct{}{}
		ids = append(ids, it.AuthorID)
	}
	return ids
}
