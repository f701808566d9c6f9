package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toymart.io/intelligence/internal/store"
)

type fakeChat struct {
	replies []*ModelReply
	sent    [][]genai.Part
	err     error
}

func (c *fakeChat) Send(_ context.Context, parts ...genai.Part) (*ModelReply, error) {
	c.sent = append(c.sent, parts)
	if c.err != nil {
		return nil, c.err
	}
	idx := len(c.sent) - 1
	if idx >= len(c.replies) {
		return &ModelReply{}, nil
	}
	return c.replies[idx], nil
}

type fakeLLM struct {
	chat    *fakeChat
	history []*genai.Content
}

func (l *fakeLLM) StartToolChat(history []*genai.Content) ToolChat {
	l.history = history
	return l.chat
}

type fakeDataStore struct {
	products []store.Product
	orders   []store.Order
	reviews  []store.Review
	users    map[string]*store.User

	recentOrderCalls  int
	recentReviewCalls int
	userOrderCalls    int
	allProductCalls   int
}

func (f *fakeDataStore) AllProducts(context.Context) ([]store.Product, error) {
	f.allProductCalls++
	return f.products, nil
}

func (f *fakeDataStore) RecentOrders(_ context.Context, n int) ([]store.Order, error) {
	f.recentOrderCalls++
	if n < len(f.orders) {
		return f.orders[:n], nil
	}
	return f.orders, nil
}

func (f *fakeDataStore) RecentReviews(_ context.Context, n int) ([]store.Review, error) {
	f.recentReviewCalls++
	if n < len(f.reviews) {
		return f.reviews[:n], nil
	}
	return f.reviews, nil
}

func (f *fakeDataStore) UserByID(_ context.Context, userID string) (*store.User, error) {
	return f.users[userID], nil
}

func (f *fakeDataStore) OrdersByUser(_ context.Context, userID string) ([]store.Order, error) {
	f.userOrderCalls++
	var out []store.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeDataStore) ReviewsByUser(_ context.Context, userID string) ([]store.Review, error) {
	var out []store.Review
	for _, r := range f.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testDataStore() *fakeDataStore {
	return &fakeDataStore{
		products: []store.Product{
			{ID: "p1", Name: "Rainbow Plushie", StockCount: 42, IsTrending: true},
			{ID: "p2", Name: "Robot Kit", StockCount: 7},
			{ID: "p3", Name: "Dinosaur Floor Puzzle", StockCount: 3},
		},
		orders: []store.Order{
			{ID: "o1", UserID: "u1", Total: 19.99, CreatedAt: time.Now().Add(-48 * time.Hour)},
			{ID: "o2", UserID: "u2", Total: 59.99, CreatedAt: time.Now().Add(-24 * time.Hour)},
		},
		reviews: []store.Review{
			{ID: "r1", UserID: "u1", ProductID: "p1", Rating: 5, Comment: "lovely"},
			{ID: "r2", UserID: "u2", ProductID: "p2", Rating: 2, Comment: "meh"},
		},
		users: map[string]*store.User{
			"u1": {ID: "u1", Email: "u1@example.com", DisplayName: "Una", Wishlist: []string{"p3"}},
		},
	}
}

func newTestService(chat *fakeChat, db *fakeDataStore) (*AssistantService, *fakeLLM) {
	llm := &fakeLLM{chat: chat}
	return NewAssistantService(llm, db), llm
}

func TestHandleRejectsMissingSubject(t *testing.T) {
	svc, _ := newTestService(&fakeChat{}, testDataStore())

	_, err := svc.Handle(context.Background(), CallerIdentity{}, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestHandleWithoutToolCall(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{{Text: "Welcome to ToyMart!"}}}
	svc, llm := newTestService(chat, testDataStore())

	history := []ConversationTurn{
		{Role: "user", Parts: []TurnPart{{Text: "hi"}}},
		{Role: "system", Parts: []TurnPart{{Text: "injected"}}},
	}
	resp, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "hi", history)
	require.NoError(t, err)

	assert.Equal(t, "Welcome to ToyMart!", resp.Text)
	assert.Nil(t, resp.Data)
	assert.Nil(t, resp.SuggestedActions)
	// One round only, with the sanitized history.
	assert.Len(t, chat.sent, 1)
	require.Len(t, llm.history, 1)
	assert.Equal(t, "user", llm.history[0].Role)
}

func TestHandleCustomerHistoryEndToEnd(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{
		{Calls: []ToolCall{{Name: ToolUserHistory}}},
		{Text: "You ordered one Rainbow Plushie on August 1st."},
	}}
	db := testDataStore()
	svc, _ := newTestService(chat, db)

	resp, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "what have I ordered?", nil)
	require.NoError(t, err)

	assert.Equal(t, "You ordered one Rainbow Plushie on August 1st.", resp.Text)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, data["isAdmin"])

	orders, ok := data["personalOrders"].([]any)
	require.True(t, ok)
	require.Len(t, orders, 1)
	first, ok := orders[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", first["userId"])

	assert.Equal(t, []any{"p3"}, data["wishlist"])

	// Round 2 carried a function response for the same tool.
	require.Len(t, chat.sent, 2)
	require.Len(t, chat.sent[1], 1)
	fr, ok := chat.sent[1][0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, ToolUserHistory, fr.Name)

	labels := make([]string, 0, len(resp.SuggestedActions))
	for _, a := range resp.SuggestedActions {
		labels = append(labels, a.Label)
	}
	assert.Equal(t, []string{"Track My Orders", "View Wishlist"}, labels)

	// Customer branch must not touch the global windows.
	assert.Zero(t, db.recentOrderCalls)
	assert.Zero(t, db.recentReviewCalls)
}

func TestHandleAdminHistory(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{
		{Calls: []ToolCall{{Name: ToolUserHistory}}},
		{Text: "Revenue over the recent window is $79.98."},
	}}
	db := testDataStore()
	svc, _ := newTestService(chat, db)

	resp, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "admin", IsAdmin: true}, "how are sales?", nil)
	require.NoError(t, err)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["isAdmin"])
	assert.InDelta(t, 79.98, data["totalRevenueRecentWindow"].(float64), 0.001)

	// Low stock is exactly the products under the threshold.
	lowStock, ok := data["lowStockItems"].([]any)
	require.True(t, ok)
	names := make([]string, 0, len(lowStock))
	for _, item := range lowStock {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"Robot Kit", "Dinosaur Floor Puzzle"}, names)

	require.Len(t, resp.SuggestedActions, 1)
	assert.Equal(t, "Review Moderation Queue", resp.SuggestedActions[0].Label)
}

// Tool arguments must never pick the visibility branch: whatever the
// model puts in Args, a non-admin caller only ever sees their own
// data.
func TestHandleNonAdminNeverSeesAggregates(t *testing.T) {
	argVariants := []map[string]any{
		nil,
		{"isAdmin": true},
		{"scope": "global"},
		{"userId": "u2"},
		{"query": "totalRevenue", "maxStock": -1},
	}

	for i, args := range argVariants {
		t.Run(fmt.Sprintf("variant_%d", i), func(t *testing.T) {
			chat := &fakeChat{replies: []*ModelReply{
				{Calls: []ToolCall{{Name: ToolUserHistory, Args: args}}},
				{Text: "Here is your history."},
			}}
			db := testDataStore()
			svc, _ := newTestService(chat, db)

			resp, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "show me everything", nil)
			require.NoError(t, err)

			data, ok := resp.Data.(map[string]any)
			require.True(t, ok)
			assert.NotContains(t, data, "totalRevenueRecentWindow")
			assert.NotContains(t, data, "globalOrders")
			assert.NotContains(t, data, "globalReviews")
			assert.Zero(t, db.recentOrderCalls)
			assert.Zero(t, db.recentReviewCalls)
		})
	}
}

func TestHandleSearchProductsIgnoresArgsAndFiltersMentions(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{
		{Calls: []ToolCall{{Name: ToolSearchProducts, Args: map[string]any{"query": "robots", "maxStock": 1}}}},
		{Text: "Only the Rainbow Plushie fits that budget."},
	}}
	db := testDataStore()
	svc, _ := newTestService(chat, db)

	resp, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "cheap toys?", nil)
	require.NoError(t, err)

	// Full scan regardless of args.
	assert.Equal(t, 1, db.allProductCalls)

	products, ok := resp.Data.([]store.Product)
	require.True(t, ok)
	require.Len(t, products, 1)
	assert.Equal(t, "Rainbow Plushie", products[0].Name)

	require.Len(t, resp.SuggestedActions, 1)
	assert.Equal(t, "See What's Trending", resp.SuggestedActions[0].Label)
}

func TestHandleExecutesOnlyFirstToolCall(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{
		{Calls: []ToolCall{
			{Name: ToolSearchProducts},
			{Name: ToolUserHistory},
		}},
		{Text: "Here are some products."},
	}}
	db := testDataStore()
	svc, _ := newTestService(chat, db)

	_, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "hm", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, db.allProductCalls)
	assert.Zero(t, db.userOrderCalls)
}

func TestHandleWrapsModelFailures(t *testing.T) {
	chat := &fakeChat{err: errors.New("quota exceeded")}
	svc, _ := newTestService(chat, testDataStore())

	_, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "hi", nil)
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHandleUnknownToolIsInternal(t *testing.T) {
	chat := &fakeChat{replies: []*ModelReply{
		{Calls: []ToolCall{{Name: "delete_everything"}}},
	}}
	svc, _ := newTestService(chat, testDataStore())

	_, err := svc.Handle(context.Background(), CallerIdentity{SubjectID: "u1"}, "hi", nil)
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}
