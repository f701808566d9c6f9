package core

import "context"

// EntityTypePerson matches the entity type the self-learning branch
// must skip: people's names are never blocklist candidates.
const EntityTypePerson = "PERSON"

// Entity is a named span extracted from a comment, with the model's
// salience score for it (0..1).
type Entity struct {
	Text     string
	Type     string
	Salience float32
}

// Classification is one sentiment + entity analysis over a comment.
// SentimentScore is roughly -1 (negative) to +1 (positive).
type Classification struct {
	SentimentScore float32
	Entities       []Entity
}

// Classifier is the text-analysis collaborator behind the moderation
// pipeline.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}
