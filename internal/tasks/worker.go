// internal/tasks/worker.go
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/hibiken/asynq"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/scraper"
)

// ScrapeRunner is the slice of the orchestrator the worker drives.
type ScrapeRunner interface {
	ScrapeSubreddit(ctx context.Context, name, timeFilter string, limit int, progress scraper.ProgressFunc) (*models.ScrapeResult, error)
	ScrapeNewPosts(ctx context.Context, name string, limit int, progress scraper.ProgressFunc) (*models.ScrapeResult, error)
	ScrapeAll(ctx context.Context, progress scraper.ProgressFunc) (*models.SweepResult, error)
}

// StatusRecorder receives task lifecycle updates.
type StatusRecorder interface {
	MarkStarted(ctx context.Context, id, status string) error
	Progress(ctx context.Context, id string, current, total int, status string) error
	Succeed(ctx context.Context, id string, result interface{}) error
	Fail(ctx context.Context, id string, taskErr error, traceback string) error
}

// Worker runs the queued scrape jobs and mirrors their lifecycle into the
// registry: started, progress updates, then a terminal success or failure.
type Worker struct {
	orchestrator ScrapeRunner
	registry     StatusRecorder
}

func NewWorker(orchestrator ScrapeRunner, registry StatusRecorder) *Worker {
	return &Worker{
		orchestrator: orchestrator,
		registry:     registry,
	}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScrapeSubreddit, w.HandleScrapeSubreddit)
	mux.HandleFunc(TypeScrapeAll, w.HandleScrapeAll)
	mux.HandleFunc(TypeScrapeNew, w.HandleScrapeNew)
}

func (w *Worker) HandleScrapeSubreddit(ctx context.Context, t *asynq.Task) error {
	var payload ScrapeSubredditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("parsing payload: %v: %w", err, asynq.SkipRetry)
	}

	w.markStarted(ctx, payload.TaskID, fmt.Sprintf("Starting to scrape r/%s", payload.Subreddit))

	result, err := w.orchestrator.ScrapeSubreddit(ctx, payload.Subreddit, payload.TimeFilter, payload.Limit, w.progress(ctx, payload.TaskID))
	if err != nil {
		return w.fail(ctx, payload.TaskID, err)
	}

	return w.succeed(ctx, payload.TaskID, result)
}

func (w *Worker) HandleScrapeAll(ctx context.Context, t *asynq.Task) error {
	var payload ScrapeAllPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("parsing payload: %v: %w", err, asynq.SkipRetry)
	}

	w.markStarted(ctx, payload.TaskID, "Starting to scrape all active subreddits")

	result, err := w.orchestrator.ScrapeAll(ctx, w.progress(ctx, payload.TaskID))
	if err != nil {
		return w.fail(ctx, payload.TaskID, err)
	}

	return w.succeed(ctx, payload.TaskID, result)
}

func (w *Worker) HandleScrapeNew(ctx context.Context, t *asynq.Task) error {
	var payload ScrapeNewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("parsing payload: %v: %w", err, asynq.SkipRetry)
	}

	w.markStarted(ctx, payload.TaskID, fmt.Sprintf("Starting to scrape new posts from r/%s", payload.Subreddit))

	result, err := w.orchestrator.ScrapeNewPosts(ctx, payload.Subreddit, payload.Limit, w.progress(ctx, payload.TaskID))
	if err != nil {
		return w.fail(ctx, payload.TaskID, err)
	}

	return w.succeed(ctx, payload.TaskID, result)
}

func (w *Worker) progress(ctx context.Context, id string) scraper.ProgressFunc {
	return func(current, total int, status string) {
		if err := w.registry.Progress(ctx, id, current, total, status); err != nil {
			log.Printf("Failed to record progress for task %s: %v", id, err)
		}
	}
}

func (w *Worker) markStarted(ctx context.Context, id, status string) {
	if err := w.registry.MarkStarted(ctx, id, status); err != nil {
		log.Printf("Failed to mark task %s started: %v", id, err)
	}
}

func (w *Worker) succeed(ctx context.Context, id string, result interface{}) error {
	if err := w.registry.Succeed(ctx, id, result); err != nil {
		log.Printf("Failed to record success for task %s: %v", id, err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, id string, taskErr error) error {
	if err := w.registry.Fail(ctx, id, taskErr, string(debug.Stack())); err != nil {
		log.Printf("Failed to record failure for task %s: %v", id, err)
	}

	// Configuration errors are permanent; retrying cannot fix them.
	if errors.Is(taskErr, scraper.ErrConfigNotFound) || errors.Is(taskErr, scraper.ErrConfigInactive) {
		return fmt.Errorf("%v: %w", taskErr, asynq.SkipRetry)
	}
	return taskErr
}
