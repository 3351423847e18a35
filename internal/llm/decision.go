package llm

import (
	"encoding/json"
	"strings"
)

// Action is what the decision step tells the orchestrator to do next.
type Action string

const (
	ActionWebSearch       Action = "web_search"
	ActionAnalyzeDirectly Action = "analyze_directly"
)

// Decision is the parsed output of the routing call.
type Decision struct {
	Action Action `json:"action"`
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// ReasonMalformed marks decisions that degraded because the model output
// could not be parsed.
const ReasonMalformed = "malformed decision response"

// ParseDecision extracts a Decision from raw model output. Models wrap JSON
// in prose or code fences, so the parse takes the slice between the first
// '{' and the last '}'. Any malformed, unknown or incomplete decision
// degrades to analyze_directly rather than failing the pipeline.
func ParseDecision(text string) Decision {
	fallback := Decision{
		Action: ActionAnalyzeDirectly,
		Reason: ReasonMalformed,
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fallback
	}

	var d Decision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return fallback
	}

	switch d.Action {
	case ActionWebSearch:
		if strings.TrimSpace(d.Query) == "" {
			return fallback
		}
	case ActionAnalyzeDirectly:
	default:
		return fallback
	}

	return d
}
