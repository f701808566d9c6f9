package core

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
)

type TurnPart struct {
	Text string `json:"text"`
}

// ConversationTurn is one caller-supplied history entry. History is
// never persisted server-side; it arrives fresh on every call and is
// untrusted.
type ConversationTurn struct {
	Role  string     `json:"role"`
	Parts []TurnPart `json:"parts"`
}

// UnmarshalJSON repairs the shapes sloppy callers actually send:
// "parts" as a single {text} object or a bare string instead of an
// array. Anything unparseable decodes to an empty turn, which
// SanitizeHistory then drops.
func (t *ConversationTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string          `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = raw.Role
	t.Parts = nil

	if len(raw.Parts) == 0 {
		return nil
	}

	var parts []TurnPart
	if err := json.Unmarshal(raw.Parts, &parts); err == nil {
		t.Parts = parts
		return nil
	}

	var single TurnPart
	if err := json.Unmarshal(raw.Parts, &single); err == nil {
		t.Parts = []TurnPart{single}
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Parts, &text); err == nil {
		t.Parts = []TurnPart{{Text: text}}
	}
	return nil
}

// SanitizeHistory keeps only turns whose role is user or model and
// which carry at least one non-empty text part. Sanitizing an already
// sanitized history is a no-op.
func SanitizeHistory(turns []ConversationTurn) []ConversationTurn {
	sanitized := make([]ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role != "user" && turn.Role != "model" {
			continue
		}
		parts := make([]TurnPart, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.Text == "" {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		sanitized = append(sanitized, ConversationTurn{Role: turn.Role, Parts: parts})
	}
	return sanitized
}

func historyToContents(turns []ConversationTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		parts := make([]genai.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, genai.Text(p.Text))
		}
		contents = append(contents, &genai.Content{Role: turn.Role, Parts: parts})
	}
	return contents
}
