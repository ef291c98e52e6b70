// internal/tasks/jobs.go
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"reddit-harvester/internal/config"
)

const (
	TypeScrapeSubreddit = "harvest:scrape_subreddit"
	TypeScrapeAll       = "harvest:scrape_all"
	TypeScrapeNew       = "harvest:scrape_new"
)

type ScrapeSubredditPayload struct {
	TaskID     string `json:"task_id"`
	Subreddit  string `json:"subreddit"`
	TimeFilter string `json:"time_filter"`
	Limit      int    `json:"limit"`
}

type ScrapeAllPayload struct {
	TaskID string `json:"task_id"`
}

type ScrapeNewPayload struct {
	TaskID    string `json:"task_id"`
	Subreddit string `json:"subreddit"`
	Limit     int    `json:"limit"`
}

func NewScrapeSubredditTask(payload ScrapeSubredditPayload) (*asynq.Task, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScrapeSubreddit, buf), nil
}

func NewScrapeAllTask(payload ScrapeAllPayload) (*asynq.Task, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScrapeAll, buf), nil
}

func NewScrapeNewTask(payload ScrapeNewPayload) (*asynq.Task, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScrapeNew, buf), nil
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func NewQueueClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewQueueServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
}
