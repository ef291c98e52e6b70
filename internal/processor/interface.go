// internal/processor/interface.go
package processor

import (
	"reddit-harvester/internal/models"
)

type ProcessorInterface interface {
	ExtractPost(raw *models.RawSubmission) models.Post
	ExtractComment(raw *models.RawComment, postID string, depth int) *models.Comment
	WalkComments(forest []models.RawComment, postID string, maxComments int, pace func()) []models.Comment
}
