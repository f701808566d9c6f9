package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "una@example.com", "hash", "Una", false)
	require.NoError(t, err)

	byEmail, err := s.UserByEmail(ctx, "una@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, []string{}, byEmail.Wishlist)

	missing, err := s.UserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderWindows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Hour)
	for i, total := range []float64{10, 20, 30} {
		order := Order{
			UserID:    "u1",
			Items:     []OrderItem{{ProductID: "p1", Name: "Robot Kit", Quantity: 1, Price: total}},
			Total:     total,
			Status:    "placed",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.CreateOrder(ctx, &order))
	}
	require.NoError(t, s.CreateOrder(ctx, &Order{UserID: "u2", Total: 99, Status: "placed", CreatedAt: base.Add(30 * time.Minute)}))

	t.Run("recent orders are newest first and capped", func(t *testing.T) {
		recent, err := s.RecentOrders(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, float64(30), recent[0].Total)
		assert.Equal(t, float64(20), recent[1].Total)
	})

	t.Run("user orders are oldest first and scoped", func(t *testing.T) {
		orders, err := s.OrdersByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, float64(10), orders[0].Total)
		require.Len(t, orders[0].Items, 1)
		assert.Equal(t, "Robot Kit", orders[0].Items[0].Name)
	})
}

func TestReviewStateMachine(t *testing.T) {
	ctx := context.Background()

	t.Run("reviews start pending", func(t *testing.T) {
		s := newTestStore(t)
		review := Review{ProductID: "p1", UserID: "u1", Rating: 4, Comment: "good"}
		require.NoError(t, s.CreateReview(ctx, &review))
		assert.Equal(t, ReviewStatusPending, review.Status)
	})

	t.Run("flag records moderation data and is terminal", func(t *testing.T) {
		s := newTestStore(t)
		review := Review{ProductID: "p1", UserID: "u1", Rating: 1, Comment: "scam"}
		require.NoError(t, s.CreateReview(ctx, &review))

		m := ModerationData{SentimentScore: -0.9, FlaggedReason: "Restricted Language", FlaggedAt: time.Now().UTC()}
		require.NoError(t, s.FlagReview(ctx, review.ID, m))

		got, err := s.ReviewByID(ctx, review.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ReviewStatusFlagged, got.Status)
		require.NotNil(t, got.Moderation)
		assert.Equal(t, "Restricted Language", got.Moderation.FlaggedReason)

		// No transition back out of flagged via this writer.
		assert.Error(t, s.FlagReview(ctx, review.ID, m))
		require.NoError(t, s.ApproveReview(ctx, review.ID))
		got, err = s.ReviewByID(ctx, review.ID)
		require.NoError(t, err)
		assert.Equal(t, ReviewStatusFlagged, got.Status)
	})

	t.Run("approve is a no-op when already approved", func(t *testing.T) {
		s := newTestStore(t)
		review := Review{ProductID: "p1", UserID: "u1", Rating: 5, Comment: "great"}
		require.NoError(t, s.CreateReview(ctx, &review))

		require.NoError(t, s.ApproveReview(ctx, review.ID))
		require.NoError(t, s.ApproveReview(ctx, review.ID))

		got, err := s.ReviewByID(ctx, review.ID)
		require.NoError(t, err)
		assert.Equal(t, ReviewStatusApproved, got.Status)
		assert.Nil(t, got.Moderation)
	})
}

func TestBannedWords(t *testing.T) {
	ctx := context.Background()

	t.Run("missing settings row is reported as not found", func(t *testing.T) {
		s := newTestStore(t)
		words, found, err := s.BannedWords(ctx)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, words)
	})

	t.Run("union adds, lower-cases, and skips duplicates", func(t *testing.T) {
		s := newTestStore(t)

		added, err := s.AddBannedWords(ctx, []string{"Scam", "junk"})
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		added, err = s.AddBannedWords(ctx, []string{"SCAM", "garbage factory"})
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		words, found, err := s.BannedWords(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"scam", "junk", "garbage factory"}, words)
	})

	t.Run("all-duplicate input writes nothing", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AddBannedWords(ctx, []string{"scam"})
		require.NoError(t, err)

		added, err := s.AddBannedWords(ctx, []string{"scam", "", "  SCAM  "})
		require.NoError(t, err)
		assert.Zero(t, added)
	})
}
