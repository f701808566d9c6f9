package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toymart.io/intelligence/internal/store"
)

func TestFilterMentionedProducts(t *testing.T) {
	products := []store.Product{
		{ID: "p1", Name: "Rainbow Plushie"},
		{ID: "p2", Name: "Robot Kit"},
		{ID: "p3", Name: ""},
	}

	t.Run("keeps only mentioned names, case-insensitively", func(t *testing.T) {
		answer := "I'd recommend the RAINBOW plushie for a five-year-old."
		got := filterMentionedProducts(products, answer)
		require.Len(t, got, 1)
		assert.Equal(t, "p1", got[0].ID)
	})

	t.Run("no mentions means empty, not nil payload", func(t *testing.T) {
		got := filterMentionedProducts(products, "We have many great toys.")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestSuggestedActionsFor(t *testing.T) {
	t.Run("admin history gets the moderation queue", func(t *testing.T) {
		actions := suggestedActionsFor(ToolUserHistory, true)
		require.Len(t, actions, 1)
		assert.Equal(t, "Review Moderation Queue", actions[0].Label)
	})

	t.Run("customer history gets orders and wishlist, never moderation", func(t *testing.T) {
		actions := suggestedActionsFor(ToolUserHistory, false)
		labels := make([]string, 0, len(actions))
		for _, a := range actions {
			labels = append(labels, a.Label)
			assert.NotContains(t, a.Path, "moderation")
		}
		assert.Equal(t, []string{"Track My Orders", "View Wishlist"}, labels)
	})

	t.Run("product search gets trending for everyone", func(t *testing.T) {
		for _, isAdmin := range []bool{true, false} {
			actions := suggestedActionsFor(ToolSearchProducts, isAdmin)
			require.Len(t, actions, 1)
			assert.Equal(t, "See What's Trending", actions[0].Label)
		}
	})

	t.Run("no tool means no actions", func(t *testing.T) {
		assert.Nil(t, suggestedActionsFor("", false))
	})
}

func TestShapeData(t *testing.T) {
	t.Run("product list is mention-filtered", func(t *testing.T) {
		result := &ToolResult{
			Kind: ToolResultProductList,
			Products: []store.Product{
				{ID: "p1", Name: "Rainbow Plushie"},
				{ID: "p2", Name: "Robot Kit"},
			},
		}
		data := shapeData(result, "The Rainbow Plushie is our best seller.", nil)
		products, ok := data.([]store.Product)
		require.True(t, ok)
		require.Len(t, products, 1)
		assert.Equal(t, "p1", products[0].ID)
	})

	t.Run("history object passes through with actions merged in", func(t *testing.T) {
		result := &ToolResult{
			Kind:    ToolResultUserHistory,
			History: map[string]any{"isAdmin": false, "wishlist": []any{"p2"}},
		}
		actions := suggestedActionsFor(ToolUserHistory, false)
		data := shapeData(result, "You have one wishlist item.", actions)

		m, ok := data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, false, m["isAdmin"])
		assert.Equal(t, []any{"p2"}, m["wishlist"])
		assert.Equal(t, actions, m["suggestedActions"])
		// Shaping must not mutate the tool result itself.
		assert.NotContains(t, result.History, "suggestedActions")
	})
}

func TestToolResultFunctionResponse(t *testing.T) {
	t.Run("product list nests under a products key as plain JSON values", func(t *testing.T) {
		result := &ToolResult{
			Kind:     ToolResultProductList,
			Products: []store.Product{{ID: "p1", Name: "Robot Kit", StockCount: 7}},
		}
		payload, err := result.functionResponse()
		require.NoError(t, err)
		products, ok := payload["products"].([]any)
		require.True(t, ok)
		require.Len(t, products, 1)
		first, ok := products[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Robot Kit", first["name"])
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		_, err := (&ToolResult{Kind: "mystery"}).functionResponse()
		assert.Error(t, err)
	})
}
