// Package language implements core.Classifier on the Google Cloud
// Natural Language API.
package language

import (
	"context"
	"fmt"

	gcnl "cloud.google.com/go/language/apiv1"
	"cloud.google.com/go/language/apiv1/languagepb"
	"google.golang.org/api/option"

	"toymart.io/intelligence/internal/core"
)

type Client struct {
	nl *gcnl.Client
}

// NewClient builds a Cloud NL classifier. With an empty apiKey the
// client falls back to application default credentials.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	nl, err := gcnl.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create language client: %w", err)
	}
	return &Client{nl: nl}, nil
}

func (c *Client) Close() error {
	return c.nl.Close()
}

func (c *Client) Classify(ctx context.Context, text string) (*core.Classification, error) {
	doc := &languagepb.Document{
		Source: &languagepb.Document_Content{Content: text},
		Type:   languagepb.Document_PLAIN_TEXT,
	}

	sentiment, err := c.nl.AnalyzeSentiment(ctx, &languagepb.AnalyzeSentimentRequest{Document: doc})
	if err != nil {
		return nil, fmt.Errorf("sentiment analysis failed: %w", err)
	}

	entities, err := c.nl.AnalyzeEntities(ctx, &languagepb.AnalyzeEntitiesRequest{Document: doc})
	if err != nil {
		return nil, fmt.Errorf("entity analysis failed: %w", err)
	}

	cls := &core.Classification{}
	if sentiment.DocumentSentiment != nil {
		cls.SentimentScore = sentiment.DocumentSentiment.Score
	}
	for _, e := range entities.Entities {
		cls.Entities = append(cls.Entities, core.Entity{
			Text:     e.Name,
			Type:     e.Type.String(),
			Salience: e.Salience,
		})
	}
	return cls, nil
}
