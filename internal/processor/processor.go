// internal/processor/processor.go
package processor

import (
	"strings"
	"time"

	"reddit-harvester/internal/models"
)

// Comments carrying these bodies were deleted or removed upstream; no entity
// is created for them.
var tombstones = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}

// paceInterval is how many accepted comments pass between rate checks
// during a tree walk.
const paceInterval = 100

// Ensure Processor implements ProcessorInterface
var _ ProcessorInterface = (*Processor)(nil)

type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

// ExtractPost maps a raw submission into the stored post shape. Missing
// optional fields default to neutral values rather than failing.
func (p *Processor) ExtractPost(raw *models.RawSubmission) models.Post {
	author := raw.Author
	if author == "" {
		author = models.DeletedSentinel
	}

	return models.Post{
		RedditID:      raw.ID,
		Subreddit:     raw.Subreddit,
		Title:         raw.Title,
		Body:          raw.Selftext,
		Score:         raw.Score,
		UpvoteRatio:   raw.UpvoteRatio,
		NumComments:   raw.NumComments,
		CreatedUTC:    raw.CreatedUTC,
		URL:           raw.URL,
		Author:        author,
		Permalink:     raw.Permalink,
		IsSelf:        raw.IsSelf,
		IsVideo:       raw.IsVideo,
		Over18:        raw.Over18,
		Spoiler:       raw.Spoiler,
		Stickied:      raw.Stickied,
		Locked:        raw.Locked,
		Archived:      raw.Archived,
		Gilded:        raw.Gilded,
		Distinguished: raw.Distinguished,
		LinkFlairText: raw.LinkFlairText,
		PostHint:      raw.PostHint,
		Thumbnail:     raw.Thumbnail,
		Domain:        raw.Domain,
		ScrapedAt:     time.Now().UTC(),
	}
}

// ExtractComment maps a raw comment into the stored comment shape. It
// returns nil for tombstoned or empty bodies. The parent reference loses its
// type prefix; a parent equal to the owning post marks the comment top-level.
func (p *Processor) ExtractComment(raw *models.RawComment, postID string, depth int) *models.Comment {
	if raw.Body == "" || tombstones[raw.Body] {
		return nil
	}

	author := raw.Author
	if author == "" {
		author = models.DeletedSentinel
	}

	parentID := raw.ParentID
	if idx := strings.Index(parentID, "_"); idx >= 0 {
		parentID = parentID[idx+1:]
	}
	if parentID == postID {
		parentID = ""
	}

	return &models.Comment{
		RedditID:      raw.ID,
		PostID:        postID,
		Subreddit:     raw.Subreddit,
		ParentID:      parentID,
		Body:          raw.Body,
		Author:        author,
		Score:         raw.Score,
		CreatedUTC:    raw.CreatedUTC,
		Edited:        bool(raw.Edited),
		IsSubmitter:   raw.IsSubmitter,
		Stickied:      raw.Stickied,
		Gilded:        raw.Gilded,
		Distinguished: raw.Distinguished,
		Depth:         depth,
		Permalink:     raw.Permalink,
		ScrapedAt:     time.Now().UTC(),
	}
}

// WalkComments traverses a comment forest pre-order, assigning depth per
// nesting level. The cap counts accepted comments across the whole walk, so
// hitting it stops all further expansion; partial trees are expected. Sibling
// order follows the remote enumeration order. pace, if set, is invoked every
// 100 accepted comments.
func (p *Processor) WalkComments(forest []models.RawComment, postID string, maxComments int, pace func()) []models.Comment {
	type frame struct {
		node  *models.RawComment
		depth int
	}

	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{&forest[i], 0})
	}

	comments := make([]models.Comment, 0, len(forest))
	for len(stack) > 0 && len(comments) < maxComments {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		comment := p.ExtractComment(f.node, postID, f.depth)
		if comment == nil {
			continue
		}
		comments = append(comments, *comment)

		if pace != nil && len(comments)%paceInterval == 0 {
			pace()
		}

		// Replies are pushed in reverse so siblings pop in API order.
		replies := f.node.Replies.Comments
		for i := len(replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{&replies[i], f.depth + 1})
		}
	}

	return comments
}
