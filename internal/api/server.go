// internal/api/server.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/storage"
)

const (
	defaultIntervalHours = 24
	defaultMaxPosts      = 100
	defaultMaxComments   = 100
	defaultPostsPageSize = 25
	maxPostsPageSize     = 500
)

// Server exposes the HTTP front end: subreddit configuration CRUD,
// scraped-content readback, and the scrape job endpoints.
type Server struct {
	storage  storage.StorageInterface
	enqueuer Enqueuer
	tasks    TaskReader
}

func NewServer(store storage.StorageInterface, enqueuer Enqueuer, taskReader TaskReader) *Server {
	return &Server{
		storage:  store,
		enqueuer: enqueuer,
		tasks:    taskReader,
	}
}

// Router builds the chi route tree for the server.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scrapes", func(r chi.Router) {
			r.Post("/subreddit", s.handleScrapeSubreddit)
			r.Post("/all", s.handleScrapeAll)
			r.Post("/new", s.handleScrapeNew)
		})

		r.Get("/tasks/{id}", s.handleGetTask)

		r.Route("/subreddits", func(r chi.Router) {
			r.Get("/", s.handleListSubreddits)
			r.Post("/", s.handleUpsertSubreddit)
			r.Get("/{name}", s.handleGetSubreddit)
			r.Delete("/{name}", s.handleDisableSubreddit)
			r.Get("/{name}/posts", s.handleGetSubredditPosts)
		})

		r.Get("/posts/{id}/comments", s.handleGetPostComments)

		r.Get("/stats", s.handleGetStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	Subreddit  string `json:"subreddit"`
	TimeFilter string `json:"time_filter"`
	Limit      int    `json:"limit"`
}

func (s *Server) handleScrapeSubreddit(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subreddit == "" {
		respondError(w, http.StatusBadRequest, "subreddit is required")
		return
	}

	id, err := s.enqueuer.EnqueueScrapeSubreddit(r.Context(), req.Subreddit, req.TimeFilter, req.Limit)
	if err != nil {
		log.Printf("Failed to enqueue scrape for r/%s: %v", req.Subreddit, err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue scrape")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "state": "queued"})
}

func (s *Server) handleScrapeAll(w http.ResponseWriter, r *http.Request) {
	id, err := s.enqueuer.EnqueueScrapeAll(r.Context())
	if err != nil {
		log.Printf("Failed to enqueue sweep: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue sweep")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "state": "queued"})
}

func (s *Server) handleScrapeNew(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subreddit == "" {
		respondError(w, http.StatusBadRequest, "subreddit is required")
		return
	}

	id, err := s.enqueuer.EnqueueScrapeNew(r.Context(), req.Subreddit, req.Limit)
	if err != nil {
		log.Printf("Failed to enqueue new-posts scrape for r/%s: %v", req.Subreddit, err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue scrape")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "state": "queued"})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		log.Printf("Failed to read task %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to read task status")
		return
	}
	if status == nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleListSubreddits(w http.ResponseWriter, r *http.Request) {
	configs, err := s.storage.GetAllSubredditConfigs(r.Context())
	if err != nil {
		log.Printf("Failed to list subreddit configs: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list subreddits")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(configs),
		"subreddits": configs,
	})
}

// subredditRequest mirrors SubredditConfig but accepts the credential
// secrets, which the stored model never serializes back out.
type subredditRequest struct {
	Name        string `json:"name"`
	Credentials struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		Username     string `json:"username"`
		Password     string `json:"password"`
		UserAgent    string `json:"user_agent"`
	} `json:"credentials"`
	Active                *bool `json:"active"`
	ScrapingIntervalHours int   `json:"scraping_interval_hours"`
	MaxPostsPerScrape     int   `json:"max_posts_per_scrape"`
	ScrapeComments        *bool `json:"scrape_comments"`
	MaxCommentsPerPost    int   `json:"max_comments_per_post"`
}

func (s *Server) handleUpsertSubreddit(w http.ResponseWriter, r *http.Request) {
	var req subredditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Credentials.ClientID == "" || req.Credentials.Username == "" {
		respondError(w, http.StatusBadRequest, "credentials are required")
		return
	}

	cfg := models.SubredditConfig{
		Name: req.Name,
		Credentials: models.Credentials{
			ClientID:     req.Credentials.ClientID,
			ClientSecret: req.Credentials.ClientSecret,
			Username:     req.Credentials.Username,
			Password:     req.Credentials.Password,
			UserAgent:    req.Credentials.UserAgent,
		},
		Active:                true,
		ScrapeComments:        true,
		ScrapingIntervalHours: req.ScrapingIntervalHours,
		MaxPostsPerScrape:     req.MaxPostsPerScrape,
		MaxCommentsPerPost:    req.MaxCommentsPerPost,
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if req.ScrapeComments != nil {
		cfg.ScrapeComments = *req.ScrapeComments
	}

	if cfg.ScrapingIntervalHours <= 0 {
		cfg.ScrapingIntervalHours = defaultIntervalHours
	}
	if cfg.MaxPostsPerScrape <= 0 {
		cfg.MaxPostsPerScrape = defaultMaxPosts
	}
	if cfg.MaxCommentsPerPost <= 0 {
		cfg.MaxCommentsPerPost = defaultMaxComments
	}

	if err := s.storage.UpsertSubredditConfig(r.Context(), &cfg); err != nil {
		log.Printf("Failed to upsert config for r/%s: %v", cfg.Name, err)
		respondError(w, http.StatusInternalServerError, "failed to save subreddit config")
		return
	}
	respondJSON(w, http.StatusOK, &cfg)
}

func (s *Server) handleGetSubreddit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cfg, err := s.storage.GetSubredditConfig(r.Context(), name)
	if err != nil {
		log.Printf("Failed to read config for r/%s: %v", name, err)
		respondError(w, http.StatusInternalServerError, "failed to read subreddit config")
		return
	}
	if cfg == nil {
		respondError(w, http.StatusNotFound, "subreddit not configured")
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// handleDisableSubreddit deactivates a configuration instead of deleting
// it, so scraped history keeps its owning config.
func (s *Server) handleDisableSubreddit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cfg, err := s.storage.GetSubredditConfig(r.Context(), name)
	if err != nil {
		log.Printf("Failed to read config for r/%s: %v", name, err)
		respondError(w, http.StatusInternalServerError, "failed to read subreddit config")
		return
	}
	if cfg == nil {
		respondError(w, http.StatusNotFound, "subreddit not configured")
		return
	}

	if err := s.storage.SetSubredditActive(r.Context(), name, false); err != nil {
		log.Printf("Failed to deactivate r/%s: %v", name, err)
		respondError(w, http.StatusInternalServerError, "failed to deactivate subreddit")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"name": name, "active": false})
}

func (s *Server) handleGetSubredditPosts(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := defaultPostsPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxPostsPageSize {
			respondError(w, http.StatusBadRequest, "limit not valid")
			return
		}
		limit = parsed
	}

	posts, err := s.storage.GetPostsBySubreddit(r.Context(), name, limit)
	if err != nil {
		log.Printf("Failed to read posts for r/%s: %v", name, err)
		respondError(w, http.StatusInternalServerError, "failed to read posts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"subreddit": name,
		"count":     len(posts),
		"posts":     posts,
	})
}

func (s *Server) handleGetPostComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	comments, err := s.storage.GetPostComments(r.Context(), postID)
	if err != nil {
		log.Printf("Failed to read comments for post %s: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "failed to read comments")
		return
	}

	if r.URL.Query().Get("format") == "tree" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"post_id":  postID,
			"count":    len(comments),
			"comments": buildCommentTree(comments),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"post_id":  postID,
		"count":    len(comments),
		"comments": comments,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.GetStats(r.Context())
	if err != nil {
		log.Printf("Failed to read system stats: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// CommentNode is a comment with its replies nested under it.
type CommentNode struct {
	models.Comment
	Replies []*CommentNode `json:"replies"`
}

// buildCommentTree reassembles the stored flat comments into a forest
// using their parent links. Comments whose parent is missing from the
// set are promoted to the top level rather than dropped.
func buildCommentTree(comments []models.Comment) []*CommentNode {
	nodes := make(map[string]*CommentNode, len(comments))
	for i := range comments {
		nodes[comments[i].RedditID] = &CommentNode{
			Comment: comments[i],
			Replies: []*CommentNode{},
		}
	}

	roots := []*CommentNode{}
	for i := range comments {
		node := nodes[comments[i].RedditID]
		if parent, ok := nodes[comments[i].ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
