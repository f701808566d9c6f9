package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	streamKey     = "reviews:created"
	consumerGroup = "moderation-group"
	readBlock     = 5 * time.Second
)

// RedisBus publishes review-created events onto a Redis Stream and
// consumes them through a consumer group, so multiple service
// instances share the moderation work without double-handling a
// review.
type RedisBus struct {
	rdb      *redis.Client
	consumer string
}

func NewRedisBus(ctx context.Context, redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if err := rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "0").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "moderation-1"
	}
	return &RedisBus{rdb: rdb, consumer: host}, nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func (b *RedisBus) PublishReviewCreated(ctx context.Context, ev ReviewCreated) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal review event: %w", err)
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"event": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish review event: %w", err)
	}
	return nil
}

func (b *RedisBus) Run(ctx context.Context, handle Handler) error {
	log.Printf("Starting review event consumer %q on stream %q", b.consumer, streamKey)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: b.consumer,
			Streams:  []string{streamKey, ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()

		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("Error reading review event stream: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleMessage(ctx, msg, handle)
			}
		}
	}
}

func (b *RedisBus) handleMessage(ctx context.Context, msg redis.XMessage, handle Handler) {
	// Ack even malformed messages; redelivering them cannot help.
	defer b.rdb.XAck(ctx, streamKey, consumerGroup, msg.ID)

	payload, ok := msg.Values["event"].(string)
	if !ok {
		log.Printf("Invalid stream message %s: missing event field", msg.ID)
		return
	}

	var ev ReviewCreated
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Printf("Failed to unmarshal review event %s: %v", msg.ID, err)
		return
	}

	handle(ctx, ev)
}
