package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	assistantModelName = "gemini-1.5-flash-latest"

	assistantSystemInstruction = "You are the ToyMart shopping assistant. Answer questions about products, orders, " +
		"and reviews using the tools you are given. " +
		"Never claim you cannot access data a tool covers; if a tool result is empty, say so plainly. " +
		"To recommend items the customer has not bought yet, compare the product IDs in their order history " +
		"against the full catalog and suggest only items outside that history. " +
		"A customer's favorites come only from the wishlist field of their own profile. " +
		"Trending items are only the products whose isTrending flag is set; never infer trendiness. " +
		"For non-admin users, never mention store-wide figures such as total revenue or other customers' orders " +
		"or reviews, under any circumstances. " +
		"When listing orders, reviews, or products, format them as a Markdown table. " +
		"Keep answers concise and grounded in the tool results; do not make up information."
)

// Tool names exposed to the model. Fixed pair, not user-extensible.
const (
	ToolSearchProducts = "search_products"
	ToolUserHistory    = "get_user_history"
)

var assistantTools = []*genai.Tool{{
	FunctionDeclarations: []*genai.FunctionDeclaration{
		{
			Name: ToolSearchProducts,
			Description: "Returns the product catalog. Use it for any question about products, stock, " +
				"prices, categories, or trending items, then reason over the returned array yourself.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {
						Type:        genai.TypeString,
						Description: "Free-text description of what the user is looking for.",
					},
					"maxStock": {
						Type:        genai.TypeNumber,
						Description: "Optional upper bound on stock count the user asked about.",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: ToolUserHistory,
			Description: "Returns the purchase and review history visible to the current user: their own " +
				"profile, wishlist, orders, and reviews, or store-wide analytics for admins.",
		},
	},
}}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ModelReply is one model response: its concatenated text parts and
// any tool calls it requested.
type ModelReply struct {
	Text  string
	Calls []ToolCall
}

// ToolChat is a single model conversation that can span a tool round.
type ToolChat interface {
	Send(ctx context.Context, parts ...genai.Part) (*ModelReply, error)
}

// ChatStarter opens tool-enabled conversations. Satisfied by
// LLMService and by fakes in tests.
type ChatStarter interface {
	StartToolChat(history []*genai.Content) ToolChat
}

type LLMService struct {
	client *genai.Client
}

func NewLLMService(ctx context.Context, apiKey string) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *LLMService) StartToolChat(history []*genai.Content) ToolChat {
	model := s.client.GenerativeModel(assistantModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(assistantSystemInstruction)},
	}
	model.Tools = assistantTools

	session := model.StartChat()
	session.History = history
	return &geminiToolChat{session: session}
}

type geminiToolChat struct {
	session *genai.ChatSession
}

func (c *geminiToolChat) Send(ctx context.Context, parts ...genai.Part) (*ModelReply, error) {
	resp, err := c.session.SendMessage(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini SendMessage failed: %w", err)
	}

	reply := &ModelReply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		log.Println("Gemini response was empty or had no valid candidates.")
		return reply, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			reply.Calls = append(reply.Calls, ToolCall{Name: p.Name, Args: p.Args})
		default:
			log.Printf("Gemini response part was neither text nor a function call: %T", part)
		}
	}
	reply.Text = text.String()
	return reply, nil
}
