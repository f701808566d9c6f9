package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"toymart.io/intelligence/internal/store"
)

type ToolResultKind string

const (
	ToolResultProductList ToolResultKind = "product_list"
	ToolResultUserHistory ToolResultKind = "user_history"
)

// ToolResult carries a tool's payload together with an explicit kind
// tag, so response shaping dispatches on the tag instead of sniffing
// the payload's shape.
type ToolResult struct {
	Kind     ToolResultKind
	Products []store.Product // Kind == ToolResultProductList
	History  map[string]any  // Kind == ToolResultUserHistory
}

// functionResponse renders the result as the map fed back to the model
// in the synthesis round.
func (r *ToolResult) functionResponse() (map[string]any, error) {
	switch r.Kind {
	case ToolResultProductList:
		products, err := jsonValue(r.Products)
		if err != nil {
			return nil, err
		}
		return map[string]any{"products": products}, nil
	case ToolResultUserHistory:
		return r.History, nil
	}
	return nil, fmt.Errorf("unknown tool result kind %q", r.Kind)
}

// SuggestedAction is a UI shortcut derived per response. Ephemeral,
// never persisted.
type SuggestedAction struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Type  string `json:"type"`
}

// suggestedActionsFor is a pure function of which tool ran and the
// caller's role; the model's text has no say in it.
func suggestedActionsFor(toolName string, isAdmin bool) []SuggestedAction {
	switch toolName {
	case ToolUserHistory:
		if isAdmin {
			return []SuggestedAction{
				{Label: "Review Moderation Queue", Path: "/admin/moderation", Type: "admin"},
			}
		}
		return []SuggestedAction{
			{Label: "Track My Orders", Path: "/account/orders", Type: "account"},
			{Label: "View Wishlist", Path: "/account/wishlist", Type: "account"},
		}
	case ToolSearchProducts:
		return []SuggestedAction{
			{Label: "See What's Trending", Path: "/products?filter=trending", Type: "catalog"},
		}
	}
	return nil
}

// filterMentionedProducts keeps only products whose name appears
// (case-insensitively) in the synthesized answer, so the UI never
// shows a card for a product the answer doesn't talk about.
func filterMentionedProducts(products []store.Product, answer string) []store.Product {
	lowerAnswer := strings.ToLower(answer)
	mentioned := make([]store.Product, 0, len(products))
	for _, p := range products {
		if p.Name == "" {
			continue
		}
		if strings.Contains(lowerAnswer, strings.ToLower(p.Name)) {
			mentioned = append(mentioned, p)
		}
	}
	return mentioned
}

// shapeData produces the response payload for one tool result. Product
// lists are mention-filtered against the answer text; history objects
// get the suggested actions merged in and pass through unfiltered.
func shapeData(result *ToolResult, answer string, actions []SuggestedAction) any {
	switch result.Kind {
	case ToolResultProductList:
		return filterMentionedProducts(result.Products, answer)
	case ToolResultUserHistory:
		data := make(map[string]any, len(result.History)+1)
		for k, v := range result.History {
			data[k] = v
		}
		data["suggestedActions"] = actions
		return data
	}
	return nil
}

// jsonValue round-trips a value through JSON so nested structs become
// plain maps and slices, which is what both the genai function
// response and the wire payload want.
func jsonValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to rebuild tool payload: %w", err)
	}
	return out, nil
}
