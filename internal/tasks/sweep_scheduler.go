// internal/tasks/sweep_scheduler.go
package tasks

import (
	"fmt"

	"github.com/ersauravadhikari/blueberry-go/blueberry"

	"reddit-harvester/internal/config"
	"reddit-harvester/internal/scraper"
)

type TaskManagerInterface interface {
	RegisterTasks() error
}

// Ensure SweepScheduler implements TaskManagerInterface
var _ TaskManagerInterface = (*SweepScheduler)(nil)

// SweepScheduler registers the recurring harvest tasks with BlueBerry:
// the full sweep of active subreddits, and an optional frequent new-posts
// monitoring pass. Per-subreddit interval checks happen inside the sweep
// itself, so one schedule covers every configuration.
type SweepScheduler struct {
	blueBerry    *blueberry.BlueBerry
	orchestrator *scraper.Orchestrator
	config       *config.Config
}

func NewSweepScheduler(bb *blueberry.BlueBerry, orchestrator *scraper.Orchestrator, cfg *config.Config) *SweepScheduler {
	return &SweepScheduler{
		blueBerry:    bb,
		orchestrator: orchestrator,
		config:       cfg,
	}
}

// RegisterTasks registers the harvest tasks and their schedules with BlueBerry
func (s *SweepScheduler) RegisterTasks() error {
	schema := blueberry.NewTaskSchema(blueberry.TaskParamDefinition{})

	task, err := s.blueBerry.RegisterTask(
		"harvest_sweep",
		s.runSweep,
		schema,
	)
	if err != nil {
		return fmt.Errorf("failed to register sweep task: %w", err)
	}

	if _, err := task.RegisterSchedule(blueberry.TaskParams{}, s.config.SweepSchedule); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	fmt.Printf("Scheduled subreddit sweep (%s)\n", s.config.SweepSchedule)

	if !s.config.NewPostsEnabled {
		return nil
	}

	newPostsTask, err := s.blueBerry.RegisterTask(
		"harvest_new_posts",
		s.runNewPostsMonitoring,
		blueberry.NewTaskSchema(blueberry.TaskParamDefinition{}),
	)
	if err != nil {
		return fmt.Errorf("failed to register new-posts task: %w", err)
	}

	if _, err := newPostsTask.RegisterSchedule(blueberry.TaskParams{}, s.config.NewPostsSchedule); err != nil {
		return fmt.Errorf("failed to schedule new-posts monitoring: %w", err)
	}

	fmt.Printf("Scheduled new-posts monitoring (%s)\n", s.config.NewPostsSchedule)
	return nil
}

// runSweep is the task function executed by BlueBerry
func (s *SweepScheduler) runSweep(tctx *blueberry.TaskContext) error {
	ctx := tctx.GetContext()
	logger := tctx.GetLogger()

	logger.Info("Starting sweep of active subreddits")

	sweep, err := s.orchestrator.ScrapeAll(ctx, func(current, total int, status string) {
		logger.Info(fmt.Sprintf("[%d/%d] %s", current, total, status))
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Sweep failed: %v", err))
		return err
	}

	logger.Success(fmt.Sprintf("Sweep complete: %d scraped, %d skipped, %d failed of %d",
		sweep.Scraped, sweep.Skipped, sweep.Failed, sweep.TotalSubreddits))
	return nil
}

// runNewPostsMonitoring is the frequent new-posts pass executed by BlueBerry
func (s *SweepScheduler) runNewPostsMonitoring(tctx *blueberry.TaskContext) error {
	ctx := tctx.GetContext()
	logger := tctx.GetLogger()

	logger.Info("Checking active subreddits for new posts")

	sweep, err := s.orchestrator.ScrapeAllNew(ctx, s.config.NewPostsLimit, func(current, total int, status string) {
		logger.Info(fmt.Sprintf("[%d/%d] %s", current, total, status))
	})
	if err != nil {
		logger.Error(fmt.Sprintf("New-posts monitoring failed: %v", err))
		return err
	}

	logger.Success(fmt.Sprintf("New-posts check complete: %d scraped, %d failed of %d",
		sweep.Scraped, sweep.Failed, sweep.TotalSubreddits))
	return nil
}
