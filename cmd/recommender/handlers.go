package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/moderation"
	"github.com/greattalk/feed-recommender/internal/recommendation"
	"github.com/greattalk/feed-recommender/internal/rules"
	"github.com/greattalk/feed-recommender/internal/session"
	"github.com/sirupsen/logrus"
)

const sessionHeader = "X-Session-ID"

// maxBodyBytes caps request bodies; compute requests carry whole content pools
const maxBodyBytes = 8 << 20

type recommender interface {
	Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, error)
	GenerateRecommendations(req models.RecommendationRequest, user models.UserProfile, items []models.ContentItem,
		interactions []models.InteractionRecord, followed []string, authors []models.UserProfile) *models.RecommendationResult
	GetMetrics() string
}

type moderator interface {
	Evaluate(item models.ContentItem) moderation.Result
	RunSweep(ctx context.Context, period string) (*models.ModerationReport, error)
	GetMetrics() string
}

// api holds the collaborators behind the HTTP routes
type api struct {
	recommender recommender
	moderator   moderator
	engine      *rules.Engine
	sessions    *session.Manager
	collector   *metrics.Collector
}

type computeRequest struct {
	Request      models.RecommendationRequest `json:"request"`
	User         models.UserProfile           `json:"user"`
	Items        []models.ContentItem         `json:"items"`
	Interactions []models.InteractionRecord   `json:"interactions"`
	Followed     []string                     `json:"followed"`
	Authors      []models.UserProfile         `json:"authors"`
}

type userRulesRequest struct {
	User    models.UserProfile     `json:"user"`
	Context map[string]interface{} `json:"context"`
}

type contentRulesRequest struct {
	Item    models.ContentItem     `json:"item"`
	Context map[string]interface{} `json:"context"`
}

type interactionRulesRequest struct {
	Interaction models.InteractionRecord `json:"interaction"`
	Context     map[string]interface{}   `json:"context"`
}

func (a *api) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", a.metricsHandler).Methods("GET")
	router.Handle("/metrics/prometheus", a.collector.Handler()).Methods("GET")

	router.HandleFunc("/recommendations", a.recommendHandler).Methods("POST")
	router.HandleFunc("/recommendations/compute", a.computeHandler).Methods("POST")
	router.HandleFunc("/moderation", a.moderationHandler).Methods("POST")
	router.HandleFunc("/rules/users", a.userRulesHandler).Methods("POST")
	router.HandleFunc("/rules/content", a.contentRulesHandler).Methods("POST")
	router.HandleFunc("/rules/interactions", a.interactionRulesHandler).Methods("POST")

	// Manual trigger endpoint for an out-of-schedule sweep
	router.HandleFunc("/trigger", a.triggerHandler).Methods("POST")

	router.HandleFunc("/sessions", a.openSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}", a.logoutHandler).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/likes/{target}", a.toggleHandler(session.ActionLike)).Methods("POST")
	router.HandleFunc("/sessions/{id}/mutes/{target}", a.toggleHandler(session.ActionMute)).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *api) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendation": json.RawMessage(a.recommender.GetMetrics()),
		"moderation":     json.RawMessage(a.moderator.GetMetrics()),
		"open_sessions":  a.sessions.Len(),
	})
}

func (a *api) recommendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if !decode(w, r, &req) {
		return
	}

	var s *session.Session
	if id := r.Header.Get(sessionHeader); id != "" {
		var ok bool
		if s, ok = a.sessions.Get(id); !ok {
			writeError(w, http.StatusUnauthorized, "unknown session")
			return
		}
		if s.UserID != req.UserID {
			writeError(w, http.StatusForbidden, "session belongs to another user")
			return
		}
	}

	result, err := a.recommender.Recommend(r.Context(), req)
	if errors.Is(err, recommendation.ErrMissingUser) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logrus.Errorf("Recommendation failed for %s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}

	if s != nil {
		filtered := *result
		filtered.Items = s.Visible(r.Context(), result.Items)
		result = &filtered
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *api) computeHandler(w http.ResponseWriter, r *http.Request) {
	var body computeRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Request.UserID == "" {
		body.Request.UserID = body.User.ID
	}

	result := a.recommender.GenerateRecommendations(body.Request, body.User, body.Items,
		body.Interactions, body.Followed, body.Authors)
	writeJSON(w, http.StatusOK, result)
}

func (a *api) moderationHandler(w http.ResponseWriter, r *http.Request) {
	var item models.ContentItem
	if !decode(w, r, &item) {
		return
	}
	writeJSON(w, http.StatusOK, a.moderator.Evaluate(item))
}

func (a *api) userRulesHandler(w http.ResponseWriter, r *http.Request) {
	var body userRulesRequest
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, a.engine.ExecuteUserRules(body.User, body.Context))
}

func (a *api) contentRulesHandler(w http.ResponseWriter, r *http.Request) {
	var body contentRulesRequest
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, a.engine.ExecuteContentRules(body.Item, body.Context))
}

func (a *api) interactionRulesHandler(w http.ResponseWriter, r *http.Request) {
	var body interactionRulesRequest
	if !decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, a.engine.ExecuteInteractionRules(body.Interaction, body.Context))
}

func (a *api) triggerHandler(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := a.moderator.RunSweep(context.Background(), "manual"); err != nil {
			logrus.Errorf("Manual moderation sweep failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Moderation sweep triggered successfully"})
}

func (a *api) openSessionHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	s := a.sessions.Open(body.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID, "user_id": s.UserID})
}

func (a *api) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.Logout(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) toggleHandler(action session.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		s, ok := a.sessions.Get(vars["id"])
		if !ok {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}

		state, err := s.Toggle(r.Context(), action, vars["target"])
		switch {
		case errors.Is(err, session.ErrTogglePending):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, session.ErrSessionClosed):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":  err.Error(),
				"target": vars["target"],
				"active": state,
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"target": vars["target"],
			"active": state,
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
