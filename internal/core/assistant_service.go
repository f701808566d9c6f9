package core

import (
	"context"
	"log"

	"github.com/google/generative-ai-go/genai"

	"toymart.io/intelligence/internal/store"
)

// Visibility windows for the admin history tool. The revenue figure is
// a bounded-window sum over the fetched order page, not a store-wide
// total, and is named accordingly in the payload.
const (
	recentOrderWindow  = 50
	recentReviewWindow = 100
	lowStockThreshold  = 10
)

// CallerIdentity is the authenticated caller. IsAdmin comes from the
// upstream auth context, never from anything the model says.
type CallerIdentity struct {
	SubjectID string
	IsAdmin   bool
}

// ChatResponse is the shaped answer for one assistant turn.
type ChatResponse struct {
	Text             string            `json:"text"`
	Data             any               `json:"data,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
}

// DataStore is the slice of the document store the assistant reads.
type DataStore interface {
	AllProducts(ctx context.Context) ([]store.Product, error)
	RecentOrders(ctx context.Context, n int) ([]store.Order, error)
	RecentReviews(ctx context.Context, n int) ([]store.Review, error)
	UserByID(ctx context.Context, userID string) (*store.User, error)
	OrdersByUser(ctx context.Context, userID string) ([]store.Order, error)
	ReviewsByUser(ctx context.Context, userID string) ([]store.Review, error)
}

// AssistantService mediates between the caller, the model, and the
// data layer, enforcing the data-visibility contract around tool
// calls.
type AssistantService struct {
	llm     ChatStarter
	dbStore DataStore
}

func NewAssistantService(llm ChatStarter, dbStore DataStore) *AssistantService {
	return &AssistantService{llm: llm, dbStore: dbStore}
}

// Handle runs one assistant turn: sanitize the supplied history, let
// the model pick a tool, execute at most one tool call, feed the
// result back for synthesis, and shape the answer. The whole turn
// either produces a complete answer or an error; there is no partial
// state.
func (s *AssistantService) Handle(ctx context.Context, caller CallerIdentity, message string, history []ConversationTurn) (*ChatResponse, error) {
	if caller.SubjectID == "" {
		return nil, unauthenticatedErr("caller has no subject ID")
	}

	sanitized := SanitizeHistory(history)
	chat := s.llm.StartToolChat(historyToContents(sanitized))

	reply, err := chat.Send(ctx, genai.Text(message))
	if err != nil {
		return nil, internalErr(err, "model round 1 failed")
	}

	if len(reply.Calls) == 0 {
		return &ChatResponse{Text: reply.Text}, nil
	}

	// Policy: at most one tool call per turn. Anything past the first
	// is logged and ignored.
	call := reply.Calls[0]
	if len(reply.Calls) > 1 {
		log.Printf("Model requested %d tool calls in one turn; executing %q and ignoring the rest.", len(reply.Calls), call.Name)
	}

	result, err := s.executeTool(ctx, caller, call)
	if err != nil {
		return nil, internalErr(err, "tool execution failed")
	}

	payload, err := result.functionResponse()
	if err != nil {
		return nil, internalErr(err, "tool result encoding failed")
	}

	final, err := chat.Send(ctx, genai.FunctionResponse{Name: call.Name, Response: payload})
	if err != nil {
		return nil, internalErr(err, "model synthesis round failed")
	}

	actions := suggestedActionsFor(call.Name, caller.IsAdmin)
	return &ChatResponse{
		Text:             final.Text,
		Data:             shapeData(result, final.Text, actions),
		SuggestedActions: actions,
	}, nil
}

// executeTool runs the single tool the model requested. Which
// visibility branch runs is decided solely by the caller's trusted
// admin flag; tool arguments never influence it.
func (s *AssistantService) executeTool(ctx context.Context, caller CallerIdentity, call ToolCall) (*ToolResult, error) {
	switch call.Name {
	case ToolSearchProducts:
		// Full catalog scan regardless of the model-supplied query and
		// maxStock arguments: filtering is deferred to the model's own
		// reasoning over the returned array.
		products, err := s.dbStore.AllProducts(ctx)
		if err != nil {
			return nil, err
		}
		return &ToolResult{Kind: ToolResultProductList, Products: products}, nil

	case ToolUserHistory:
		if caller.IsAdmin {
			return s.adminHistory(ctx)
		}
		return s.customerHistory(ctx, caller.SubjectID)
	}

	return nil, &unknownToolError{name: call.Name}
}

type unknownToolError struct {
	name string
}

func (e *unknownToolError) Error() string {
	return "model requested unknown tool " + e.name
}

func (s *AssistantService) adminHistory(ctx context.Context) (*ToolResult, error) {
	orders, err := s.dbStore.RecentOrders(ctx, recentOrderWindow)
	if err != nil {
		return nil, err
	}
	products, err := s.dbStore.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	reviews, err := s.dbStore.RecentReviews(ctx, recentReviewWindow)
	if err != nil {
		return nil, err
	}

	var revenue float64
	for _, o := range orders {
		revenue += o.Total
	}

	lowStock := make([]store.Product, 0)
	for _, p := range products {
		if p.StockCount < lowStockThreshold {
			lowStock = append(lowStock, p)
		}
	}

	history, err := historyPayload(map[string]any{
		"isAdmin":                  true,
		"totalRevenueRecentWindow": revenue,
		"globalOrders":             orders,
		"globalReviews":            reviews,
		"lowStockItems":            lowStock,
	})
	if err != nil {
		return nil, err
	}
	return &ToolResult{Kind: ToolResultUserHistory, History: history}, nil
}

func (s *AssistantService) customerHistory(ctx context.Context, userID string) (*ToolResult, error) {
	user, err := s.dbStore.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := map[string]any{}
	wishlist := []string{}
	if user != nil {
		profile = map[string]any{
			"id":          user.ID,
			"email":       user.Email,
			"displayName": user.DisplayName,
		}
		wishlist = user.Wishlist
	}

	orders, err := s.dbStore.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.dbStore.ReviewsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := historyPayload(map[string]any{
		"isAdmin":        false,
		"profile":        profile,
		"wishlist":       wishlist,
		"userReviews":    reviews,
		"personalOrders": orders,
	})
	if err != nil {
		return nil, err
	}
	return &ToolResult{Kind: ToolResultUserHistory, History: history}, nil
}

func historyPayload(fields map[string]any) (map[string]any, error) {
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		jv, err := jsonValue(v)
		if err != nil {
			return nil, err
		}
		payload[k] = jv
	}
	return payload, nil
}
