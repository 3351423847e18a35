package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Decision
	}{
		{
			name:  "clean web_search",
			input: `{"action": "web_search", "query": "brisbane median house price 2026", "reason": "needs current data"}`,
			expected: Decision{
				Action: ActionWebSearch,
				Query:  "brisbane median house price 2026",
				Reason: "needs current data",
			},
		},
		{
			name:  "analyze_directly",
			input: `{"action": "analyze_directly", "query": "", "reason": "general advice question"}`,
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "general advice question",
			},
		},
		{
			name:  "json wrapped in prose",
			input: "Sure, here is my decision:\n```json\n{\"action\": \"web_search\", \"query\": \"sydney auction clearance\", \"reason\": \"time sensitive\"}\n```\nLet me know.",
			expected: Decision{
				Action: ActionWebSearch,
				Query:  "sydney auction clearance",
				Reason: "time sensitive",
			},
		},
		{
			name:  "no braces at all",
			input: "I think we should search the web for this.",
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "malformed decision response",
			},
		},
		{
			name:  "broken json inside braces",
			input: `{"action": "web_search", "query": `,
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "malformed decision response",
			},
		},
		{
			name:  "unknown action",
			input: `{"action": "phone_a_friend", "query": "x", "reason": "y"}`,
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "malformed decision response",
			},
		},
		{
			name:  "web_search with empty query",
			input: `{"action": "web_search", "query": "  ", "reason": "y"}`,
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "malformed decision response",
			},
		},
		{
			name:  "empty input",
			input: "",
			expected: Decision{
				Action: ActionAnalyzeDirectly,
				Reason: "malformed decision response",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDecision(tt.input))
		})
	}
}
