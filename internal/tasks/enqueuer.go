// internal/tasks/enqueuer.go
package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/xid"
)

// Enqueuer submits scrape jobs and seeds their registry record so the id is
// pollable immediately after enqueue.
type Enqueuer struct {
	client   *asynq.Client
	registry *Registry
}

func NewEnqueuer(client *asynq.Client, registry *Registry) *Enqueuer {
	return &Enqueuer{
		client:   client,
		registry: registry,
	}
}

func (e *Enqueuer) EnqueueScrapeSubreddit(ctx context.Context, subreddit, timeFilter string, limit int) (string, error) {
	id := xid.New().String()
	task, err := NewScrapeSubredditTask(ScrapeSubredditPayload{
		TaskID:     id,
		Subreddit:  subreddit,
		TimeFilter: timeFilter,
		Limit:      limit,
	})
	if err != nil {
		return "", fmt.Errorf("building scrape task: %w", err)
	}
	return id, e.submit(ctx, id, TypeScrapeSubreddit, task)
}

func (e *Enqueuer) EnqueueScrapeAll(ctx context.Context) (string, error) {
	id := xid.New().String()
	task, err := NewScrapeAllTask(ScrapeAllPayload{TaskID: id})
	if err != nil {
		return "", fmt.Errorf("building sweep task: %w", err)
	}
	return id, e.submit(ctx, id, TypeScrapeAll, task)
}

func (e *Enqueuer) EnqueueScrapeNew(ctx context.Context, subreddit string, limit int) (string, error) {
	id := xid.New().String()
	task, err := NewScrapeNewTask(ScrapeNewPayload{
		TaskID:    id,
		Subreddit: subreddit,
		Limit:     limit,
	})
	if err != nil {
		return "", fmt.Errorf("building scrape-new task: %w", err)
	}
	return id, e.submit(ctx, id, TypeScrapeNew, task)
}

func (e *Enqueuer) submit(ctx context.Context, id, taskType string, task *asynq.Task) error {
	// Seed the record first so a poll racing the enqueue sees "queued"
	// instead of an unknown id.
	if err := e.registry.Set(ctx, &TaskStatus{ID: id, Type: taskType, State: StateQueued}); err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing %s: %w", taskType, err)
	}
	return nil
}
