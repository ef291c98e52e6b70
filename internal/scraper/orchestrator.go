// internal/scraper/orchestrator.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/processor"
	"reddit-harvester/internal/ratelimit"
	"reddit-harvester/internal/reddit"
	"reddit-harvester/internal/storage"
)

var (
	ErrConfigNotFound = errors.New("no configuration found for subreddit")
	ErrConfigInactive = errors.New("subreddit is not active")
)

// RedditClient is the slice of the API client the orchestrator needs.
type RedditClient interface {
	ListPosts(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]models.RawSubmission, error)
	ExpandComments(ctx context.Context, postID string, limit int) ([]models.RawComment, error)
	AuthState() (*reddit.AuthState, error)
	CredentialID() string
}

// RateGovernor paces remote calls; consulted before every listing and
// expansion and periodically during tree walks.
type RateGovernor interface {
	Check(ctx context.Context) *models.RateLimitSnapshot
}

type (
	ClientFactory   func(creds models.Credentials) RedditClient
	GovernorFactory func(client RedditClient, subreddit string) RateGovernor

	// ProgressFunc receives current/total and a free-text status line.
	ProgressFunc func(current, total int, status string)
)

// Orchestrator sequences a scrape: list posts, extract and persist each,
// then walk and persist its comment tree. Clients and governors are built
// per subreddit configuration since each carries its own credential set.
type Orchestrator struct {
	storage     storage.StorageInterface
	processor   processor.ProcessorInterface
	newClient   ClientFactory
	newGovernor GovernorFactory

	defaultTimeFilter string
	interPostDelay    time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

func NewOrchestrator(
	store storage.StorageInterface,
	proc processor.ProcessorInterface,
	newClient ClientFactory,
	minRemaining int,
	defaultTimeFilter string,
	interPostDelay time.Duration,
) *Orchestrator {
	o := &Orchestrator{
		storage:           store,
		processor:         proc,
		newClient:         newClient,
		defaultTimeFilter: defaultTimeFilter,
		interPostDelay:    interPostDelay,
		sleep:             time.Sleep,
		now:               time.Now,
	}
	o.newGovernor = func(client RedditClient, subreddit string) RateGovernor {
		return ratelimit.NewGovernor(client, store, subreddit, minRemaining)
	}
	return o
}

// ScrapeSubreddit scrapes the top posts of one configured subreddit.
func (o *Orchestrator) ScrapeSubreddit(ctx context.Context, name, timeFilter string, limit int, progress ProgressFunc) (*models.ScrapeResult, error) {
	cfg, err := o.loadActiveConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	if timeFilter == "" {
		timeFilter = o.defaultTimeFilter
	}
	return o.scrape(ctx, cfg, "top", timeFilter, limit, progress)
}

// ScrapeNewPosts scrapes the newest posts of one configured subreddit.
func (o *Orchestrator) ScrapeNewPosts(ctx context.Context, name string, limit int, progress ProgressFunc) (*models.ScrapeResult, error) {
	cfg, err := o.loadActiveConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = cfg.MaxPostsPerScrape
		if limit > 100 {
			limit = 100
		}
	}
	return o.scrape(ctx, cfg, "new", "", limit, progress)
}

// ScrapeAll sweeps every active configuration sequentially. A configuration
// is skipped when its scraping interval has not elapsed; one subreddit's
// failure does not affect the rest of the sweep.
func (o *Orchestrator) ScrapeAll(ctx context.Context, progress ProgressFunc) (*models.SweepResult, error) {
	configs, err := o.storage.GetActiveSubredditConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active configs: %w", err)
	}

	sweep := &models.SweepResult{
		TotalSubreddits: len(configs),
		Results:         make(map[string]*models.SweepEntry, len(configs)),
	}

	for i := range configs {
		cfg := &configs[i]

		if progress != nil {
			progress(i+1, len(configs), fmt.Sprintf("Scraping subreddit %d/%d: r/%s", i+1, len(configs), cfg.Name))
		}

		if !cfg.Due(o.now()) {
			log.Printf("Skipping r/%s - interval of %dh has not elapsed", cfg.Name, cfg.ScrapingIntervalHours)
			sweep.Skipped++
			sweep.Results[cfg.Name] = &models.SweepEntry{Skipped: true, Timestamp: o.now().UTC()}
			continue
		}

		result, err := o.scrape(ctx, cfg, "top", o.defaultTimeFilter, 0, nil)
		if err != nil {
			log.Printf("Error scraping r/%s: %v", cfg.Name, err)
			sweep.Failed++
			sweep.Results[cfg.Name] = &models.SweepEntry{Error: err.Error(), Timestamp: o.now().UTC()}
			continue
		}

		sweep.Scraped++
		sweep.Results[cfg.Name] = &models.SweepEntry{
			Success:      true,
			PostsScraped: result.PostsScraped,
			Timestamp:    o.now().UTC(),
		}
	}

	return sweep, nil
}

// ScrapeAllNew checks every active configuration for new posts. Unlike
// ScrapeAll it ignores the scraping interval; it exists for frequent
// monitoring passes where staleness checks would defeat the point.
func (o *Orchestrator) ScrapeAllNew(ctx context.Context, limit int, progress ProgressFunc) (*models.SweepResult, error) {
	configs, err := o.storage.GetActiveSubredditConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active configs: %w", err)
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	sweep := &models.SweepResult{
		TotalSubreddits: len(configs),
		Results:         make(map[string]*models.SweepEntry, len(configs)),
	}

	for i := range configs {
		cfg := &configs[i]

		if progress != nil {
			progress(i+1, len(configs), fmt.Sprintf("Checking new posts %d/%d: r/%s", i+1, len(configs), cfg.Name))
		}

		result, err := o.scrape(ctx, cfg, "new", "", limit, nil)
		if err != nil {
			log.Printf("Error checking new posts for r/%s: %v", cfg.Name, err)
			sweep.Failed++
			sweep.Results[cfg.Name] = &models.SweepEntry{Error: err.Error(), Timestamp: o.now().UTC()}
			continue
		}

		sweep.Scraped++
		sweep.Results[cfg.Name] = &models.SweepEntry{
			Success:      true,
			PostsScraped: result.PostsScraped,
			Timestamp:    o.now().UTC(),
		}
	}

	return sweep, nil
}

func (o *Orchestrator) loadActiveConfig(ctx context.Context, name string) (*models.SubredditConfig, error) {
	cfg, err := o.storage.GetSubredditConfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading config for %s: %w", name, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	if !cfg.Active {
		return nil, fmt.Errorf("%w: %s", ErrConfigInactive, name)
	}
	return cfg, nil
}

func (o *Orchestrator) scrape(ctx context.Context, cfg *models.SubredditConfig, sort, timeFilter string, limit int, progress ProgressFunc) (*models.ScrapeResult, error) {
	if limit <= 0 {
		limit = cfg.MaxPostsPerScrape
	}

	client := o.newClient(cfg.Credentials)
	governor := o.newGovernor(client, cfg.Name)
	start := o.now()

	log.Printf("Scraping %d %s posts from r/%s", limit, sort, cfg.Name)

	governor.Check(ctx)

	submissions, err := client.ListPosts(ctx, cfg.Name, sort, timeFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("listing posts for r/%s: %w", cfg.Name, err)
	}

	result := &models.ScrapeResult{
		Subreddit:  cfg.Name,
		TimeFilter: timeFilter,
		Timestamp:  start.UTC(),
	}

	for i := range submissions {
		submission := &submissions[i]

		if progress != nil {
			progress(i+1, len(submissions), fmt.Sprintf("Processing post %d/%d: %s", i+1, len(submissions), truncate(submission.Title, 50)))
		}

		governor.Check(ctx)

		post := o.processor.ExtractPost(submission)
		outcome, err := o.storage.UpsertPost(ctx, &post)
		result.Posts.Record(outcome, err)
		if err != nil {
			log.Printf("Failed to save post %s: %v", post.RedditID, err)
		}
		result.PostsScraped++

		if cfg.ScrapeComments {
			if err := o.scrapePostComments(ctx, client, governor, cfg, post.RedditID, result); err != nil {
				return nil, err
			}
		}

		// Courtesy throttle between posts, independent of the governor.
		o.sleep(o.interPostDelay)
	}

	// Only a full top-listing scrape counts toward the re-scrape interval;
	// new-posts monitoring passes must not postpone the next sweep.
	if sort == "top" {
		if err := o.storage.UpdateLastScraped(ctx, cfg.Name, start); err != nil {
			return nil, fmt.Errorf("updating last_scraped for r/%s: %w", cfg.Name, err)
		}
	}

	result.Duration = o.now().Sub(start)
	log.Printf("Scraped r/%s: %d posts, %d comments in %v",
		cfg.Name, result.PostsScraped, result.CommentsSaved, result.Duration.Round(time.Millisecond))

	return result, nil
}

func (o *Orchestrator) scrapePostComments(ctx context.Context, client RedditClient, governor RateGovernor, cfg *models.SubredditConfig, postID string, result *models.ScrapeResult) error {
	governor.Check(ctx)

	forest, err := client.ExpandComments(ctx, postID, cfg.MaxCommentsPerPost)
	if err != nil {
		return fmt.Errorf("expanding comments for %s: %w", postID, err)
	}

	comments := o.processor.WalkComments(forest, postID, cfg.MaxCommentsPerPost, func() {
		governor.Check(ctx)
	})

	for i := range comments {
		outcome, err := o.storage.UpsertComment(ctx, &comments[i])
		result.Comments.Record(outcome, err)
		if err != nil {
			log.Printf("Failed to save comment %s: %v", comments[i].RedditID, err)
			continue
		}
		result.CommentsSaved++
	}

	return nil
}

// truncate cuts on rune boundaries so multi-byte titles never produce
// invalid UTF-8 in status strings.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
