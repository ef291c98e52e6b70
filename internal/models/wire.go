// internal/models/wire.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Reddit wraps every payload in a kind/data envelope ("Listing", "t1", "t3").
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Before   string  `json:"before"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// RawSubmission is a post as the listing endpoint returns it.
type RawSubmission struct {
	ID            string  `json:"id"`
	Subreddit     string  `json:"subreddit"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Score         int     `json:"score"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	URL           string  `json:"url"`
	Author        string  `json:"author"`
	Permalink     string  `json:"permalink"`
	IsSelf        bool    `json:"is_self"`
	IsVideo       bool    `json:"is_video"`
	Over18        bool    `json:"over_18"`
	Spoiler       bool    `json:"spoiler"`
	Stickied      bool    `json:"stickied"`
	Locked        bool    `json:"locked"`
	Archived      bool    `json:"archived"`
	Gilded        int     `json:"gilded"`
	Distinguished string  `json:"distinguished"`
	LinkFlairText string  `json:"link_flair_text"`
	PostHint      string  `json:"post_hint"`
	Thumbnail     string  `json:"thumbnail"`
	Domain        string  `json:"domain"`
}

// RawComment is a comment node as the comments endpoint returns it.
// Replies holds the already-unwrapped child comments.
type RawComment struct {
	ID            string  `json:"id"`
	ParentID      string  `json:"parent_id"`
	Subreddit     string  `json:"subreddit"`
	Body          string  `json:"body"`
	Author        string  `json:"author"`
	Score         int     `json:"score"`
	CreatedUTC    float64 `json:"created_utc"`
	Edited        Edited  `json:"edited"`
	IsSubmitter   bool    `json:"is_submitter"`
	Stickied      bool    `json:"stickied"`
	Gilded        int     `json:"gilded"`
	Distinguished string  `json:"distinguished"`
	Permalink     string  `json:"permalink"`
	Replies       Replies `json:"replies"`
}

// Edited is false or an edit timestamp on the wire; only the flag is kept.
type Edited bool

func (e *Edited) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	*e = s != "false" && s != "null" && s != `""`
	return nil
}

// Replies is "" when a comment has no children, otherwise a nested listing.
type Replies struct {
	Comments []RawComment
}

func (r *Replies) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		r.Comments = nil
		return nil
	}

	var listing Listing
	if err := json.Unmarshal(trimmed, &listing); err != nil {
		return err
	}

	r.Comments = CommentsFromListing(&listing)
	return nil
}

// CommentsFromListing unwraps the t1 children of a comment listing,
// skipping malformed nodes and "more" stubs. Stubs are not expanded via
// /api/morechildren, so forests deeper than one response page come back
// partial even below the per-post comment cap.
func CommentsFromListing(listing *Listing) []RawComment {
	comments := make([]RawComment, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var comment RawComment
		if err := json.Unmarshal(child.Data, &comment); err != nil {
			continue
		}
		comments = append(comments, comment)
	}
	return comments
}
