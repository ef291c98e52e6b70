// internal/models/models.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeletedSentinel replaces the author of posts and comments whose account is gone.
const DeletedSentinel = "[deleted]"

// Credentials holds one Reddit API credential set.
type Credentials struct {
	ClientID     string `bson:"client_id" json:"client_id"`
	ClientSecret string `bson:"client_secret" json:"-"`
	Username     string `bson:"username" json:"username"`
	Password     string `bson:"password" json:"-"`
	UserAgent    string `bson:"user_agent" json:"user_agent"`
}

// SubredditConfig is one monitored community, including the credential set
// used to scrape it. Name is the natural key.
type SubredditConfig struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name                  string             `bson:"name" json:"name"`
	Credentials           Credentials        `bson:"credentials" json:"credentials"`
	Active                bool               `bson:"active" json:"active"`
	LastScraped           *time.Time         `bson:"last_scraped,omitempty" json:"last_scraped,omitempty"`
	ScrapingIntervalHours int                `bson:"scraping_interval_hours" json:"scraping_interval_hours"`
	MaxPostsPerScrape     int                `bson:"max_posts_per_scrape" json:"max_posts_per_scrape"`
	ScrapeComments        bool               `bson:"scrape_comments" json:"scrape_comments"`
	MaxCommentsPerPost    int                `bson:"max_comments_per_post" json:"max_comments_per_post"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// Due reports whether the config is eligible for a sweep scrape at t.
// Configs that were never scraped are always eligible.
func (c *SubredditConfig) Due(t time.Time) bool {
	if c.LastScraped == nil || c.LastScraped.IsZero() {
		return true
	}
	interval := time.Duration(c.ScrapingIntervalHours) * time.Hour
	return t.Sub(*c.LastScraped) >= interval
}

// Post is a normalized Reddit submission. RedditID is the upsert key;
// re-scraping replaces all fields.
type Post struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RedditID      string             `bson:"reddit_id" json:"id"`
	Subreddit     string             `bson:"subreddit" json:"subreddit"`
	Title         string             `bson:"title" json:"title"`
	Body          string             `bson:"body" json:"body"`
	Score         int                `bson:"score" json:"score"`
	UpvoteRatio   float64            `bson:"upvote_ratio" json:"upvote_ratio"`
	NumComments   int                `bson:"num_comments" json:"num_comments"`
	CreatedUTC    float64            `bson:"created_utc" json:"created_utc"`
	URL           string             `bson:"url" json:"url"`
	Author        string             `bson:"author" json:"author"`
	Permalink     string             `bson:"permalink" json:"permalink"`
	IsSelf        bool               `bson:"is_self" json:"is_self"`
	IsVideo       bool               `bson:"is_video" json:"is_video"`
	Over18        bool               `bson:"over_18" json:"over_18"`
	Spoiler       bool               `bson:"spoiler" json:"spoiler"`
	Stickied      bool               `bson:"stickied" json:"stickied"`
	Locked        bool               `bson:"locked" json:"locked"`
	Archived      bool               `bson:"archived" json:"archived"`
	Gilded        int                `bson:"gilded" json:"gilded"`
	Distinguished string             `bson:"distinguished,omitempty" json:"distinguished,omitempty"`
	LinkFlairText string             `bson:"link_flair_text,omitempty" json:"link_flair_text,omitempty"`
	PostHint      string             `bson:"post_hint,omitempty" json:"post_hint,omitempty"`
	Thumbnail     string             `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Domain        string             `bson:"domain,omitempty" json:"domain,omitempty"`
	ScrapedAt     time.Time          `bson:"scraped_at" json:"scraped_at"`
}

// Comment is a normalized Reddit comment. RedditID is the upsert key.
// ParentID is empty for top-level comments (including comments whose raw
// parent reference is the owning post).
type Comment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RedditID      string             `bson:"reddit_id" json:"id"`
	PostID        string             `bson:"post_id" json:"post_id"`
	Subreddit     string             `bson:"subreddit" json:"subreddit"`
	ParentID      string             `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Body          string             `bson:"body" json:"body"`
	Author        string             `bson:"author" json:"author"`
	Score         int                `bson:"score" json:"score"`
	CreatedUTC    float64            `bson:"created_utc" json:"created_utc"`
	Edited        bool               `bson:"edited" json:"edited"`
	IsSubmitter   bool               `bson:"is_submitter" json:"is_submitter"`
	Stickied      bool               `bson:"stickied" json:"stickied"`
	Gilded        int                `bson:"gilded" json:"gilded"`
	Distinguished string             `bson:"distinguished,omitempty" json:"distinguished,omitempty"`
	Depth         int                `bson:"depth" json:"depth"`
	Permalink     string             `bson:"permalink" json:"permalink"`
	ScrapedAt     time.Time          `bson:"scraped_at" json:"scraped_at"`
}

// RateLimitSnapshot is the latest observed quota state for one credential
// set. CredentialID is the upsert key, so at most one live snapshot exists
// per credential.
type RateLimitSnapshot struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	CredentialID   string             `bson:"credential_id" json:"credential_id"`
	Subreddit      string             `bson:"subreddit" json:"subreddit"`
	Remaining      float64            `bson:"remaining" json:"remaining"`
	Used           int                `bson:"used" json:"used"`
	ResetTimestamp float64            `bson:"reset_timestamp" json:"reset_timestamp"`
	LastUpdated    time.Time          `bson:"last_updated" json:"last_updated"`
}

// SystemStats is a point-in-time summary of the harvested corpus. "Today"
// counts cover documents scraped since UTC midnight.
type SystemStats struct {
	Subreddits       int64 `json:"subreddits"`
	ActiveSubreddits int64 `json:"active_subreddits"`
	TotalPosts       int64 `json:"total_posts"`
	TotalComments    int64 `json:"total_comments"`
	RateLimitRecords int64 `json:"rate_limit_records"`
	PostsToday       int64 `json:"posts_today"`
	CommentsToday    int64 `json:"comments_today"`
}

// SaveOutcome is the tri-state result of a single upsert.
type SaveOutcome int

const (
	SaveInserted SaveOutcome = iota
	SaveUpdated
	SaveFailed
)

// SaveSummary aggregates upsert outcomes across a batch so callers can see
// exactly how many records succeeded.
type SaveSummary struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *SaveSummary) Record(outcome SaveOutcome, err error) {
	switch outcome {
	case SaveInserted:
		s.Inserted++
	case SaveUpdated:
		s.Updated++
	case SaveFailed:
		s.Failed++
		if err != nil {
			s.Errors = append(s.Errors, err.Error())
		}
	}
}

// Merge folds another summary into this one.
func (s *SaveSummary) Merge(other SaveSummary) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Failed += other.Failed
	s.Errors = append(s.Errors, other.Errors...)
}

func (s *SaveSummary) Saved() int { return s.Inserted + s.Updated }

// ScrapeResult is the terminal payload of one subreddit scrape.
type ScrapeResult struct {
	Subreddit     string        `json:"subreddit"`
	TimeFilter    string        `json:"time_filter,omitempty"`
	PostsScraped  int           `json:"posts_scraped"`
	CommentsSaved int           `json:"comments_saved"`
	Posts         SaveSummary   `json:"posts"`
	Comments      SaveSummary   `json:"comments"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SweepResult summarizes a scrape across all active configurations.
type SweepResult struct {
	TotalSubreddits int                    `json:"total_subreddits"`
	Scraped         int                    `json:"scraped"`
	Skipped         int                    `json:"skipped"`
	Failed          int                    `json:"failed"`
	Results         map[string]*SweepEntry `json:"results"`
}

// SweepEntry is the per-subreddit outcome within a sweep.
type SweepEntry struct {
	Success      bool      `json:"success"`
	Skipped      bool      `json:"skipped,omitempty"`
	PostsScraped int       `json:"posts_scraped,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
