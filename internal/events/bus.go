// Package events carries review-document-created events from the
// write path to the moderation pipeline. In a multi-process deployment
// the Redis Streams bus stands in for a document-store trigger; the
// in-memory bus serves single-process runs and tests.
package events

import "context"

// ReviewCreated is emitted once per newly created review document.
type ReviewCreated struct {
	ReviewID  string `json:"reviewId"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Rating    int    `json:"rating"`
	Headline  string `json:"headline"`
	Comment   string `json:"comment"`
}

// Handler processes one event. It must not panic; delivery is
// at-least-once on the Redis bus.
type Handler func(ctx context.Context, ev ReviewCreated)

type Bus interface {
	PublishReviewCreated(ctx context.Context, ev ReviewCreated) error
	// Run consumes events and invokes the handler until ctx is done.
	Run(ctx context.Context, handle Handler) error
}
