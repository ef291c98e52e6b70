// internal/storage/interface.go
package storage

import (
	"context"
	"time"

	"reddit-harvester/internal/models"
)

type StorageInterface interface {
	// Subreddit config operations
	GetSubredditConfig(ctx context.Context, name string) (*models.SubredditConfig, error)
	GetActiveSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error)
	GetAllSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error)
	UpsertSubredditConfig(ctx context.Context, config *models.SubredditConfig) error
	SetSubredditActive(ctx context.Context, name string, active bool) error
	UpdateLastScraped(ctx context.Context, name string, scrapedAt time.Time) error

	// Post and comment operations
	UpsertPost(ctx context.Context, post *models.Post) (models.SaveOutcome, error)
	UpsertComment(ctx context.Context, comment *models.Comment) (models.SaveOutcome, error)
	GetPostByRedditID(ctx context.Context, redditID string) (*models.Post, error)
	GetPostsBySubreddit(ctx context.Context, subreddit string, limit int) ([]models.Post, error)
	GetPostComments(ctx context.Context, postID string) ([]models.Comment, error)

	// Rate limit snapshots
	UpsertRateLimit(ctx context.Context, snapshot *models.RateLimitSnapshot) error
	GetRateLimit(ctx context.Context, credentialID string) (*models.RateLimitSnapshot, error)

	// System statistics
	GetStats(ctx context.Context) (*models.SystemStats, error)

	// Health check and cleanup
	Ping(ctx context.Context) error
	Close() error
}
