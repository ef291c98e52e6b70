// internal/storage/mongo_storage.go
package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reddit-harvester/internal/models"
)

const (
	SubredditsCollection = "subreddits"
	PostsCollection      = "posts"
	CommentsCollection   = "comments"
	RateLimitsCollection = "rate_limits"
)

var _ StorageInterface = (*MongoStorage)(nil)

type MongoStorage struct {
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoStorage(mongoURI, databaseName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)

	storage := &MongoStorage{
		client:   client,
		database: database,
	}

	if err := storage.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return storage, nil
}

func (s *MongoStorage) createIndexes(ctx context.Context) error {
	subredditIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "active", Value: 1}}},
	}
	if _, err := s.database.Collection(SubredditsCollection).Indexes().CreateMany(ctx, subredditIndexes); err != nil {
		return err
	}

	postIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reddit_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "subreddit", Value: 1}}},
		{Keys: bson.D{{Key: "created_utc", Value: -1}}},
		{Keys: bson.D{{Key: "scraped_at", Value: -1}}},
		{Keys: bson.D{{Key: "subreddit", Value: 1}, {Key: "created_utc", Value: -1}}},
	}
	if _, err := s.database.Collection(PostsCollection).Indexes().CreateMany(ctx, postIndexes); err != nil {
		return err
	}

	commentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reddit_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "post_id", Value: 1}}},
		{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "subreddit", Value: 1}}},
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "subreddit", Value: 1}, {Key: "created_utc", Value: -1}}},
	}
	if _, err := s.database.Collection(CommentsCollection).Indexes().CreateMany(ctx, commentIndexes); err != nil {
		return err
	}

	rateLimitIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "credential_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "subreddit", Value: 1}}},
		{Keys: bson.D{{Key: "last_updated", Value: -1}}},
	}
	if _, err := s.database.Collection(RateLimitsCollection).Indexes().CreateMany(ctx, rateLimitIndexes); err != nil {
		return err
	}

	return nil
}

// Subreddit config operations

func (s *MongoStorage) GetSubredditConfig(ctx context.Context, name string) (*models.SubredditConfig, error) {
	collection := s.database.Collection(SubredditsCollection)

	var config models.SubredditConfig
	err := collection.FindOne(ctx, bson.M{"name": name}).Decode(&config)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &config, nil
}

func (s *MongoStorage) GetActiveSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error) {
	return s.findConfigs(ctx, bson.M{"active": true})
}

func (s *MongoStorage) GetAllSubredditConfigs(ctx context.Context) ([]models.SubredditConfig, error) {
	return s.findConfigs(ctx, bson.M{})
}

func (s *MongoStorage) findConfigs(ctx context.Context, filter bson.M) ([]models.SubredditConfig, error) {
	collection := s.database.Collection(SubredditsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var configs []models.SubredditConfig
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, err
	}

	return configs, nil
}

func (s *MongoStorage) UpsertSubredditConfig(ctx context.Context, config *models.SubredditConfig) error {
	if config.Name == "" {
		return fmt.Errorf("invalid config: name is required")
	}

	collection := s.database.Collection(SubredditsCollection)

	now := time.Now()
	config.UpdatedAt = now

	// last_scraped is deliberately left alone here; only UpdateLastScraped
	// advances it.
	update := bson.M{
		"$set": bson.M{
			"name":                    config.Name,
			"credentials":             config.Credentials,
			"active":                  config.Active,
			"scraping_interval_hours": config.ScrapingIntervalHours,
			"max_posts_per_scrape":    config.MaxPostsPerScrape,
			"scrape_comments":         config.ScrapeComments,
			"max_comments_per_post":   config.MaxCommentsPerPost,
			"updated_at":              config.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{"name": config.Name}, update, opts)
	return err
}

func (s *MongoStorage) SetSubredditActive(ctx context.Context, name string, active bool) error {
	collection := s.database.Collection(SubredditsCollection)

	update := bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}}
	result, err := collection.UpdateOne(ctx, bson.M{"name": name}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdateLastScraped advances last_scraped with $max so a replayed or
// out-of-order update can never roll it back.
func (s *MongoStorage) UpdateLastScraped(ctx context.Context, name string, scrapedAt time.Time) error {
	collection := s.database.Collection(SubredditsCollection)

	update := bson.M{
		"$max": bson.M{"last_scraped": scrapedAt},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := collection.UpdateOne(ctx, bson.M{"name": name}, update)
	return err
}

// Post and comment operations

// UpsertPost replaces the whole document keyed by reddit_id; no partial
// merge. The outcome reports whether the document was inserted or updated.
func (s *MongoStorage) UpsertPost(ctx context.Context, post *models.Post) (models.SaveOutcome, error) {
	if post.RedditID == "" {
		return models.SaveFailed, fmt.Errorf("invalid post: reddit_id is required")
	}

	collection := s.database.Collection(PostsCollection)

	opts := options.Replace().SetUpsert(true)
	result, err := collection.ReplaceOne(ctx, bson.M{"reddit_id": post.RedditID}, post, opts)
	if err != nil {
		return models.SaveFailed, err
	}
	if result.UpsertedCount > 0 {
		return models.SaveInserted, nil
	}
	return models.SaveUpdated, nil
}

func (s *MongoStorage) UpsertComment(ctx context.Context, comment *models.Comment) (models.SaveOutcome, error) {
	if comment.RedditID == "" {
		return models.SaveFailed, fmt.Errorf("invalid comment: reddit_id is required")
	}

	collection := s.database.Collection(CommentsCollection)

	opts := options.Replace().SetUpsert(true)
	result, err := collection.ReplaceOne(ctx, bson.M{"reddit_id": comment.RedditID}, comment, opts)
	if err != nil {
		return models.SaveFailed, err
	}
	if result.UpsertedCount > 0 {
		return models.SaveInserted, nil
	}
	return models.SaveUpdated, nil
}

func (s *MongoStorage) GetPostByRedditID(ctx context.Context, redditID string) (*models.Post, error) {
	collection := s.database.Collection(PostsCollection)

	var post models.Post
	err := collection.FindOne(ctx, bson.M{"reddit_id": redditID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &post, nil
}

func (s *MongoStorage) GetPostsBySubreddit(ctx context.Context, subreddit string, limit int) ([]models.Post, error) {
	collection := s.database.Collection(PostsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_utc", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := collection.Find(ctx, bson.M{"subreddit": subreddit}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

func (s *MongoStorage) GetPostComments(ctx context.Context, postID string) ([]models.Comment, error) {
	collection := s.database.Collection(CommentsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_utc", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var comments []models.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}

	return comments, nil
}

// Rate limit snapshots

func (s *MongoStorage) UpsertRateLimit(ctx context.Context, snapshot *models.RateLimitSnapshot) error {
	if snapshot.CredentialID == "" {
		return fmt.Errorf("invalid snapshot: credential_id is required")
	}

	collection := s.database.Collection(RateLimitsCollection)

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"credential_id": snapshot.CredentialID}, snapshot, opts)
	return err
}

func (s *MongoStorage) GetRateLimit(ctx context.Context, credentialID string) (*models.RateLimitSnapshot, error) {
	collection := s.database.Collection(RateLimitsCollection)

	var snapshot models.RateLimitSnapshot
	err := collection.FindOne(ctx, bson.M{"credential_id": credentialID}).Decode(&snapshot)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &snapshot, nil
}

// System statistics

// GetStats counts documents across the four collections, with today's
// activity measured from UTC midnight.
func (s *MongoStorage) GetStats(ctx context.Context) (*models.SystemStats, error) {
	stats := &models.SystemStats{}

	counts := []struct {
		collection string
		filter     bson.M
		dest       *int64
	}{
		{SubredditsCollection, bson.M{}, &stats.Subreddits},
		{SubredditsCollection, bson.M{"active": true}, &stats.ActiveSubreddits},
		{PostsCollection, bson.M{}, &stats.TotalPosts},
		{CommentsCollection, bson.M{}, &stats.TotalComments},
		{RateLimitsCollection, bson.M{}, &stats.RateLimitRecords},
	}
	for _, c := range counts {
		n, err := s.database.Collection(c.collection).CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.collection, err)
		}
		*c.dest = n
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	todayFilter := bson.M{"scraped_at": bson.M{"$gte": midnight}}

	postsToday, err := s.database.Collection(PostsCollection).CountDocuments(ctx, todayFilter)
	if err != nil {
		return nil, fmt.Errorf("counting today's posts: %w", err)
	}
	stats.PostsToday = postsToday

	commentsToday, err := s.database.Collection(CommentsCollection).CountDocuments(ctx, todayFilter)
	if err != nil {
		return nil, fmt.Errorf("counting today's comments: %w", err)
	}
	stats.CommentsToday = commentsToday

	return stats, nil
}

// Health check and cleanup

func (s *MongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStorage) Close() error {
	return s.client.Disconnect(context.Background())
}
