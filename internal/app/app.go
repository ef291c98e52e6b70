// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ersauravadhikari/blueberry-go/blueberry"
	"github.com/ersauravadhikari/blueberry-go/blueberry/store"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"reddit-harvester/internal/api"
	"reddit-harvester/internal/config"
	"reddit-harvester/internal/models"
	"reddit-harvester/internal/processor"
	"reddit-harvester/internal/reddit"
	"reddit-harvester/internal/scraper"
	"reddit-harvester/internal/storage"
	"reddit-harvester/internal/tasks"
)

type App struct {
	Config       *config.Config
	Storage      storage.StorageInterface
	Orchestrator *scraper.Orchestrator
	Registry     *tasks.Registry
	Enqueuer     *tasks.Enqueuer
	BlueBerry    *blueberry.BlueBerry
	TaskManager  tasks.TaskManagerInterface

	rdb         *redis.Client
	queueClient *asynq.Client
	httpServer  *http.Server
}

func Initialize() (*App, error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	mongoStore, err := storage.NewMongoStorage(cfg.MongoDBURI, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB storage: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	registry := tasks.NewRegistry(rdb, cfg.TaskStateRetention)
	queueClient := tasks.NewQueueClient(cfg)
	enqueuer := tasks.NewEnqueuer(queueClient, registry)

	clientFactory := func(creds models.Credentials) scraper.RedditClient {
		if creds.UserAgent == "" {
			creds.UserAgent = cfg.UserAgent
		}
		return reddit.NewClient(creds, cfg.RequestTimeout)
	}

	orchestrator := scraper.NewOrchestrator(
		mongoStore,
		processor.NewProcessor(),
		clientFactory,
		cfg.MinRemainingQuota,
		cfg.DefaultTimeFilter,
		cfg.InterPostDelay,
	)

	blueBerryStore, err := store.NewMongoDB(cfg.MongoDBURI, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize BlueBerry MongoDB store: %w", err)
	}

	bb := blueberry.NewBlueBerryInstance(blueBerryStore)

	// Add authentication (required)
	if cfg.WebAuthUser == "" || cfg.WebAuthPassword == "" {
		return nil, fmt.Errorf("web authentication credentials are required")
	}
	bb.AddWebOnlyPasswordAuth(cfg.WebAuthUser, cfg.WebAuthPassword)

	taskManager := tasks.NewSweepScheduler(bb, orchestrator, cfg)

	app := &App{
		Config:       cfg,
		Storage:      mongoStore,
		Orchestrator: orchestrator,
		Registry:     registry,
		Enqueuer:     enqueuer,
		BlueBerry:    bb,
		TaskManager:  taskManager,
		rdb:          rdb,
		queueClient:  queueClient,
	}

	if err := app.TaskManager.RegisterTasks(); err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}

	return app, nil
}

// RunAPI serves the HTTP front end until the server stops.
func (a *App) RunAPI() error {
	server := api.NewServer(a.Storage, a.Enqueuer, a.Registry)

	a.httpServer = &http.Server{
		Addr:    ":" + a.Config.ServerPort,
		Handler: server.Router(),
	}

	log.Printf("Starting API server on port %s...", a.Config.ServerPort)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// RunWorker processes queued scrape jobs and runs the scheduled sweep.
// The scheduler dashboard is served alongside the worker.
func (a *App) RunWorker() error {
	log.Printf("Initializing task scheduler...")
	a.BlueBerry.InitTaskScheduler()

	go func() {
		log.Printf("Starting scheduler dashboard on port %s...", a.Config.DashboardPort)
		a.BlueBerry.RunAPI(a.Config.DashboardPort)
	}()

	worker := tasks.NewWorker(a.Orchestrator, a.Registry)
	mux := asynq.NewServeMux()
	worker.Register(mux)

	log.Printf("Starting worker (concurrency %d)...", a.Config.WorkerConcurrency)
	if err := tasks.NewQueueServer(a.Config).Run(mux); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}

// RunScrape performs a one-shot scrape of a single subreddit, bypassing
// the queue. Used by the CLI.
func (a *App) RunScrape(ctx context.Context, subreddit, timeFilter string, limit int) error {
	result, err := a.Orchestrator.ScrapeSubreddit(ctx, subreddit, timeFilter, limit, func(current, total int, status string) {
		log.Printf("[%d/%d] %s", current, total, status)
	})
	if err != nil {
		return err
	}

	log.Printf("Scraped r/%s: %d posts (%d new, %d updated), %d comments in %s",
		result.Subreddit, result.PostsScraped, result.Posts.Inserted, result.Posts.Updated,
		result.CommentsSaved, result.Duration.Round(time.Millisecond))
	return nil
}

func (a *App) Shutdown() {
	log.Println("Shutting down harvester...")

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Failed to stop API server cleanly: %v", err)
		}
	}

	a.BlueBerry.Shutdown()

	if a.queueClient != nil {
		a.queueClient.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.Storage != nil {
		a.Storage.Close()
	}
}
