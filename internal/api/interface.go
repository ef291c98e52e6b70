// internal/api/interface.go
package api

import (
	"context"

	"reddit-harvester/internal/tasks"
)

// Enqueuer submits scrape jobs and returns their task ids.
type Enqueuer interface {
	EnqueueScrapeSubreddit(ctx context.Context, subreddit, timeFilter string, limit int) (string, error)
	EnqueueScrapeAll(ctx context.Context) (string, error)
	EnqueueScrapeNew(ctx context.Context, subreddit string, limit int) (string, error)
}

// TaskReader looks up task lifecycle records. A nil status with a nil
// error means the id is unknown.
type TaskReader interface {
	Get(ctx context.Context, id string) (*tasks.TaskStatus, error)
}
