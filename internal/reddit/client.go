// internal/reddit/client.go
package reddit

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"reddit-harvester/internal/models"
)

const (
	defaultAPIBase  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// AuthState is the quota status Reddit reports in its response headers.
type AuthState struct {
	Remaining float64
	Used      int
	ResetAt   float64 // epoch seconds
}

type Client struct {
	creds      models.Credentials
	httpClient *http.Client

	apiBase  string
	tokenURL string

	mu        sync.Mutex
	token     string
	tokenExp  time.Time
	authState *AuthState
	now       func() time.Time
}

func NewClient(creds models.Credentials, timeout time.Duration) *Client {
	return &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiBase:  defaultAPIBase,
		tokenURL: defaultTokenURL,
		now:      time.Now,
	}
}

// CredentialID derives a stable identifier for this credential set, used to
// scope rate-limit snapshots.
func (c *Client) CredentialID() string {
	return fmt.Sprintf("%x", md5.Sum([]byte(c.creds.ClientID+":"+c.creds.Username)))
}

// ListPosts fetches a subreddit listing. sort is "top" or "new"; timeFilter
// only applies to "top".
func (c *Client) ListPosts(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]models.RawSubmission, error) {
	params := url.Values{}
	params.Set("raw_json", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if sort == "top" && timeFilter != "" {
		params.Set("t", timeFilter)
	}

	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.apiBase, subreddit, sort, params.Encode())

	var listing models.Listing
	if err := c.makeRequest(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("listing r/%s: %w", subreddit, err)
	}

	submissions := make([]models.RawSubmission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var submission models.RawSubmission
		if err := json.Unmarshal(child.Data, &submission); err != nil {
			continue
		}
		submissions = append(submissions, submission)
	}

	return submissions, nil
}

// ExpandComments fetches the full comment forest of a post. The endpoint
// returns two listings; the second one holds the top-level comments.
func (c *Client) ExpandComments(ctx context.Context, postID string, limit int) ([]models.RawComment, error) {
	params := url.Values{}
	params.Set("raw_json", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	endpoint := fmt.Sprintf("%s/comments/%s.json?%s", c.apiBase, postID, params.Encode())

	var listings []models.Listing
	if err := c.makeRequest(ctx, endpoint, &listings); err != nil {
		return nil, fmt.Errorf("expanding comments for %s: %w", postID, err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	return models.CommentsFromListing(&listings[1]), nil
}

// AuthState returns the quota status observed on the most recent API
// response, or an error if no response has been seen yet.
func (c *Client) AuthState() (*AuthState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authState == nil {
		return nil, fmt.Errorf("no rate limit headers observed yet")
	}
	state := *c.authState
	return &state, nil
}

func (c *Client) makeRequest(ctx context.Context, endpoint string, result interface{}) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	c.recordRateHeaders(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}

// recordRateHeaders captures x-ratelimit-* headers. Reddit reports reset as
// seconds until the current window ends; it is stored as an absolute epoch.
func (c *Client) recordRateHeaders(resp *http.Response) {
	remaining := resp.Header.Get("X-Ratelimit-Remaining")
	used := resp.Header.Get("X-Ratelimit-Used")
	reset := resp.Header.Get("X-Ratelimit-Reset")
	if remaining == "" || used == "" || reset == "" {
		return
	}

	remainingVal, err1 := strconv.ParseFloat(remaining, 64)
	usedVal, err2 := strconv.Atoi(used)
	resetVal, err3 := strconv.ParseFloat(reset, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}

	c.mu.Lock()
	c.authState = &AuthState{
		Remaining: remainingVal,
		Used:      usedVal,
		ResetAt:   float64(c.now().Unix()) + resetVal,
	}
	c.mu.Unlock()
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	c.token = tokenResp.AccessToken
	// Refresh a minute early so in-flight calls never race expiry.
	c.tokenExp = c.now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)

	return c.token, nil
}
