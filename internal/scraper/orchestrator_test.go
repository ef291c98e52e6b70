// internal/scraper/orchestrator_test.go
package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"reddit-harvester/internal/models"
	"reddit-harvester/internal/processor"
	"reddit-harvester/internal/reddit"
)

type fakeStorage struct {
	configs      map[string]*models.SubredditConfig
	posts        map[string]models.Post
	comments     map[string]models.Comment
	lastScraped  map[string]time.Time
	failPosts    map[string]bool
	failComments map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		configs:      map[string]*models.SubredditConfig{},
		posts:        map[string]models.Post{},
		comments:     map[string]models.Comment{},
		lastScraped:  map[string]time.Time{},
		failPosts:    map[string]bool{},
		failComments: map[string]bool{},
	}
}

func (f *fakeStorage) GetSubredditConfig(ctx context.Context, name string) (*models.SubredditConfig, error) {
	return f.configs[name], nil
}

func (f *fakeStorage) GetActiveSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error) {
	var out []models.SubredditConfig
	for _, cfg := range f.configs {
		if cfg.Active {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetAllSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error) {
	var out []models.SubredditConfig
	for _, cfg := range f.configs {
		out = append(out, *cfg)
	}
	return out, nil
}

func (f *fakeStorage) UpsertSubredditConfig(ctx context.Context, cfg *models.SubredditConfig) error {
	f.configs[cfg.Name] = cfg
	return nil
}

func (f *fakeStorage) SetSubredditActive(ctx context.Context, name string, active bool) error {
	if cfg, ok := f.configs[name]; ok {
		cfg.Active = active
		return nil
	}
	return errors.New("not found")
}

func (f *fakeStorage) UpdateLastScraped(ctx context.Context, name string, scrapedAt time.Time) error {
	if prev, ok := f.lastScraped[name]; !ok || scrapedAt.After(prev) {
		f.lastScraped[name] = scrapedAt
	}
	return nil
}

func (f *fakeStorage) UpsertPost(ctx context.Context, post *models.Post) (models.SaveOutcome, error) {
	if f.failPosts[post.RedditID] {
		return models.SaveFailed, errors.New("write refused")
	}
	_, exists := f.posts[post.RedditID]
	f.posts[post.RedditID] = *post
	if exists {
		return models.SaveUpdated, nil
	}
	return models.SaveInserted, nil
}

func (f *fakeStorage) UpsertComment(ctx context.Context, comment *models.Comment) (models.SaveOutcome, error) {
	if f.failComments[comment.RedditID] {
		return models.SaveFailed, errors.New("write refused")
	}
	_, exists := f.comments[comment.RedditID]
	f.comments[comment.RedditID] = *comment
	if exists {
		return models.SaveUpdated, nil
	}
	return models.SaveInserted, nil
}

func (f *fakeStorage) GetPostByRedditID(ctx context.Context, id string) (*models.Post, error) {
	if p, ok := f.posts[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeStorage) GetPostsBySubreddit(ctx context.Context, subreddit string, limit int) ([]models.Post, error) {
	var out []models.Post
	for _, p := range f.posts {
		if p.Subreddit == subreddit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStorage) GetPostComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStorage) UpsertRateLimit(ctx context.Context, s *models.RateLimitSnapshot) error { return nil }
func (f *fakeStorage) GetRateLimit(ctx context.Context, id string) (*models.RateLimitSnapshot, error) {
	return nil, nil
}
func (f *fakeStorage) GetStats(ctx context.Context) (*models.SystemStats, error) {
	return &models.SystemStats{}, nil
}
func (f *fakeStorage) Ping(ctx context.Context) error { return nil }
func (f *fakeStorage) Close() error                   { return nil }

type fakeClient struct {
	listings  map[string][]models.RawSubmission
	forests   map[string][]models.RawComment
	lastSort  string
	listErr   error
	expandErr error
}

func (f *fakeClient) ListPosts(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]models.RawSubmission, error) {
	f.lastSort = sort
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[subreddit], nil
}

func (f *fakeClient) ExpandComments(ctx context.Context, postID string, limit int) ([]models.RawComment, error) {
	if f.expandErr != nil {
		return nil, f.expandErr
	}
	return f.forests[postID], nil
}

func (f *fakeClient) AuthState() (*reddit.AuthState, error) {
	return nil, errors.New("not tracked in tests")
}

func (f *fakeClient) CredentialID() string { return "cred-test" }

type noopGovernor struct{ checks int }

func (g *noopGovernor) Check(ctx context.Context) *models.RateLimitSnapshot {
	g.checks++
	return nil
}

func testConfig(name string) *models.SubredditConfig {
	return &models.SubredditConfig{
		Name:                  name,
		Active:                true,
		ScrapingIntervalHours: 24,
		MaxPostsPerScrape:     100,
		ScrapeComments:        true,
		MaxCommentsPerPost:    10,
	}
}

func newTestOrchestrator(store *fakeStorage, client *fakeClient) (*Orchestrator, *noopGovernor) {
	governor := &noopGovernor{}
	o := NewOrchestrator(store, processor.NewProcessor(), func(creds models.Credentials) RedditClient {
		return client
	}, 50, "day", 500*time.Millisecond)
	o.newGovernor = func(c RedditClient, subreddit string) RateGovernor { return governor }
	o.sleep = func(time.Duration) {}
	return o, governor
}

func rawComment(id, parentID, body string) models.RawComment {
	return models.RawComment{ID: id, ParentID: parentID, Body: body, Author: "someone"}
}

func TestScrapeSubredditEndToEnd(t *testing.T) {
	store := newFakeStorage()
	store.configs["golang"] = testConfig("golang")

	client := &fakeClient{
		listings: map[string][]models.RawSubmission{
			"golang": {
				{ID: "pa", Subreddit: "golang", Title: "Post A", Author: "alice"},
				{ID: "pb", Subreddit: "golang", Title: "Post B", Author: "bob"},
			},
		},
		forests: map[string][]models.RawComment{
			"pa": {
				rawComment("c1", "t3_pa", "first"),
				rawComment("c2", "t3_pa", "[deleted]"),
				rawComment("c3", "t3_pa", "third"),
			},
			"pb": {
				rawComment("c4", "t3_pb", "only one"),
				rawComment("c5", "t3_pb", "another"),
			},
		},
	}

	o, governor := newTestOrchestrator(store, client)

	result, err := o.ScrapeSubreddit(context.Background(), "golang", "day", 0, nil)
	if err != nil {
		t.Fatalf("ScrapeSubreddit: %v", err)
	}

	if result.PostsScraped != 2 || len(store.posts) != 2 {
		t.Errorf("expected 2 posts, got result=%d stored=%d", result.PostsScraped, len(store.posts))
	}
	if result.CommentsSaved != 4 || len(store.comments) != 4 {
		t.Errorf("expected 4 comments (tombstone excluded), got result=%d stored=%d", result.CommentsSaved, len(store.comments))
	}
	for id, c := range store.comments {
		if c.ParentID != "" || c.Depth != 0 {
			t.Errorf("comment %s: expected top-level depth 0, got parent=%q depth=%d", id, c.ParentID, c.Depth)
		}
	}
	if result.Posts.Inserted != 2 || result.Comments.Inserted != 4 {
		t.Errorf("unexpected save summary: posts=%+v comments=%+v", result.Posts, result.Comments)
	}
	if governor.checks == 0 {
		t.Error("governor was never consulted")
	}
	if _, ok := store.lastScraped["golang"]; !ok {
		t.Error("last_scraped was not advanced")
	}
}

func TestScrapeSubredditConfigErrors(t *testing.T) {
	store := newFakeStorage()
	inactive := testConfig("quiet")
	inactive.Active = false
	store.configs["quiet"] = inactive

	o, _ := newTestOrchestrator(store, &fakeClient{})

	_, err := o.ScrapeSubreddit(context.Background(), "missing", "day", 0, nil)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}

	_, err = o.ScrapeSubreddit(context.Background(), "quiet", "day", 0, nil)
	if !errors.Is(err, ErrConfigInactive) {
		t.Errorf("expected ErrConfigInactive, got %v", err)
	}
}

func TestScrapeNewPostsUsesNewSort(t *testing.T) {
	store := newFakeStorage()
	store.configs["golang"] = testConfig("golang")
	client := &fakeClient{listings: map[string][]models.RawSubmission{}}

	o, _ := newTestOrchestrator(store, client)

	if _, err := o.ScrapeNewPosts(context.Background(), "golang", 10, nil); err != nil {
		t.Fatalf("ScrapeNewPosts: %v", err)
	}
	if client.lastSort != "new" {
		t.Errorf("expected new sort, got %q", client.lastSort)
	}
}

func TestScrapeContinuesAfterFailedSave(t *testing.T) {
	store := newFakeStorage()
	cfg := testConfig("golang")
	cfg.ScrapeComments = false
	store.configs["golang"] = cfg
	store.failPosts["pa"] = true

	client := &fakeClient{
		listings: map[string][]models.RawSubmission{
			"golang": {
				{ID: "pa", Subreddit: "golang", Title: "A"},
				{ID: "pb", Subreddit: "golang", Title: "B"},
			},
		},
	}

	o, _ := newTestOrchestrator(store, client)

	result, err := o.ScrapeSubreddit(context.Background(), "golang", "day", 0, nil)
	if err != nil {
		t.Fatalf("persistence failure must not abort the scrape: %v", err)
	}
	if result.Posts.Failed != 1 || result.Posts.Inserted != 1 {
		t.Errorf("unexpected summary: %+v", result.Posts)
	}
	if len(result.Posts.Errors) != 1 {
		t.Errorf("expected 1 error message, got %v", result.Posts.Errors)
	}
}

func TestScrapeAllSkipsFreshConfigs(t *testing.T) {
	now := time.Now()
	store := newFakeStorage()

	fresh := testConfig("fresh")
	fresh.LastScraped = &now
	store.configs["fresh"] = fresh

	stale := testConfig("stale")
	staleTime := now.Add(-25 * time.Hour)
	stale.LastScraped = &staleTime
	store.configs["stale"] = stale

	never := testConfig("never")
	store.configs["never"] = never

	client := &fakeClient{listings: map[string][]models.RawSubmission{}}
	o, _ := newTestOrchestrator(store, client)

	sweep, err := o.ScrapeAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}

	if sweep.TotalSubreddits != 3 {
		t.Errorf("expected 3 configs, got %d", sweep.TotalSubreddits)
	}
	if !sweep.Results["fresh"].Skipped {
		t.Error("fresh config should be skipped")
	}
	if sweep.Results["stale"].Skipped || !sweep.Results["stale"].Success {
		t.Errorf("stale config should be scraped: %+v", sweep.Results["stale"])
	}
	if sweep.Results["never"].Skipped || !sweep.Results["never"].Success {
		t.Errorf("never-scraped config should be scraped: %+v", sweep.Results["never"])
	}
	if sweep.Scraped != 2 || sweep.Skipped != 1 {
		t.Errorf("unexpected sweep counts: %+v", sweep)
	}
}

func TestScrapeAllNewIgnoresInterval(t *testing.T) {
	now := time.Now()
	store := newFakeStorage()

	fresh := testConfig("fresh")
	fresh.LastScraped = &now
	fresh.ScrapeComments = false
	store.configs["fresh"] = fresh

	client := &fakeClient{
		listings: map[string][]models.RawSubmission{
			"fresh": {{ID: "pn", Subreddit: "fresh", Title: "brand new"}},
		},
	}
	o, _ := newTestOrchestrator(store, client)

	sweep, err := o.ScrapeAllNew(context.Background(), 25, nil)
	if err != nil {
		t.Fatalf("ScrapeAllNew: %v", err)
	}

	if client.lastSort != "new" {
		t.Errorf("expected new sort, got %q", client.lastSort)
	}
	if sweep.Scraped != 1 || !sweep.Results["fresh"].Success {
		t.Errorf("recently scraped config must still be monitored: %+v", sweep)
	}
	if len(store.posts) != 1 {
		t.Errorf("expected 1 post saved, got %d", len(store.posts))
	}
}

func TestNewPostsScrapeKeepsLastScraped(t *testing.T) {
	store := newFakeStorage()
	cfg := testConfig("golang")
	cfg.ScrapeComments = false
	store.configs["golang"] = cfg

	client := &fakeClient{
		listings: map[string][]models.RawSubmission{
			"golang": {{ID: "pn", Subreddit: "golang", Title: "new post"}},
		},
	}
	o, _ := newTestOrchestrator(store, client)

	if _, err := o.ScrapeNewPosts(context.Background(), "golang", 10, nil); err != nil {
		t.Fatalf("ScrapeNewPosts: %v", err)
	}

	// Only full top-listing scrapes count toward the re-scrape interval.
	if _, ok := store.lastScraped["golang"]; ok {
		t.Error("new-posts scrape must not advance last_scraped")
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	title := "héllo wörld, 日本語のタイトルです、とても長い"
	got := truncate(title, 15)

	runes := []rune(title)
	want := string(runes[:15]) + "..."
	if got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}

	for i, r := range got {
		if r == '�' {
			t.Fatalf("invalid UTF-8 at byte %d in %q", i, got)
		}
	}

	if short := truncate("short", 50); short != "short" {
		t.Errorf("short strings must pass through, got %q", short)
	}
}

func TestScrapeAllContinuesAfterSubredditFailure(t *testing.T) {
	store := newFakeStorage()
	store.configs["broken"] = testConfig("broken")
	store.configs["works"] = testConfig("works")

	client := &fakeClient{listings: map[string][]models.RawSubmission{}}
	o, _ := newTestOrchestrator(store, client)

	// First subreddit in iteration order fails its listing; the sweep
	// must still attempt the other.
	failing := &fakeClient{listErr: errors.New("remote unavailable")}
	calls := 0
	o.newClient = func(creds models.Credentials) RedditClient {
		calls++
		if calls == 1 {
			return failing
		}
		return client
	}

	sweep, err := o.ScrapeAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("ScrapeAll: %v", err)
	}
	if sweep.Failed != 1 || sweep.Scraped != 1 {
		t.Errorf("expected 1 failed + 1 scraped, got %+v", sweep)
	}
}

func TestScrapeAbortsOnExpandFailure(t *testing.T) {
	store := newFakeStorage()
	store.configs["golang"] = testConfig("golang")

	client := &fakeClient{
		listings: map[string][]models.RawSubmission{
			"golang": {{ID: "pa", Subreddit: "golang", Title: "A"}},
		},
		expandErr: errors.New("remote timeout"),
	}

	o, _ := newTestOrchestrator(store, client)

	if _, err := o.ScrapeSubreddit(context.Background(), "golang", "day", 0, nil); err == nil {
		t.Fatal("transient remote failure during expansion must surface")
	}
}
