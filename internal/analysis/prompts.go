package analysis

import (
	"fmt"
	"strings"

	"property-intelligence/internal/location"
	"property-intelligence/internal/rss"
	"property-intelligence/internal/websearch"
)

// buildDecisionPrompt asks the model to classify whether the question needs
// a current factual lookup. The model must answer with a single JSON object.
func buildDecisionPrompt(question string, scope location.Scope, articles []rss.Article) string {
	var sb strings.Builder
	sb.WriteString("You are a routing assistant for an Australian property market analyst.\n")
	fmt.Fprintf(&sb, "The user's question concerns %s.\n\n", scope.Focus())
	fmt.Fprintf(&sb, "Question: %s\n\n", question)

	if len(articles) > 0 {
		sb.WriteString("Recent news headlines already available:\n")
		for _, a := range articles {
			fmt.Fprintf(&sb, "- %s (%s)\n", a.Title, a.Source)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Decide whether answering well requires a specific, up-to-date factual figure ")
	sb.WriteString("(a current price, rate, or statistic) that is not in the headlines above.\n\n")
	sb.WriteString("Respond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"action": "web_search", "query": "<search query>"}` + "\n")
	sb.WriteString("or\n")
	sb.WriteString(`{"action": "analyze_directly", "reason": "<short reason>"}` + "\n")
	return sb.String()
}

// buildSynthesisPrompt assembles the final answer prompt. Empty context
// sections are omitted entirely.
func buildSynthesisPrompt(question string, scope location.Scope, articles []rss.Article, results []websearch.Result) string {
	var sb strings.Builder
	sb.WriteString("You are an expert Australian property market analyst.\n")
	fmt.Fprintf(&sb, "Focus your analysis on %s.\n\n", scope.Focus())
	fmt.Fprintf(&sb, "Question: %s\n", question)

	if len(articles) > 0 {
		sb.WriteString("\nRecent market news:\n")
		for _, a := range articles {
			fmt.Fprintf(&sb, "- %s: %s\n", a.Title, a.Summary)
		}
	}

	if len(results) > 0 {
		sb.WriteString("\nCurrent web search results:\n")
		for _, r := range results {
			fmt.Fprintf(&sb, "- %s: %s\n", r.Title, r.Snippet)
		}
	}

	sb.WriteString("\nGive a clear, practical answer grounded in the context above where relevant. ")
	sb.WriteString("State plainly when data is indicative rather than current.")
	return sb.String()
}

// fallbackNarratives are served when no LLM binding is available. Keyed by
// scope; National is also the default for unknown scopes.
var fallbackNarratives = map[location.Scope]string{
	location.ScopeNational: "The Australian property market continues to vary significantly by region. " +
		"Capital city markets generally show stronger long-term growth, while regional areas can offer " +
		"better rental yields. Consider your investment timeframe, borrowing capacity, and local supply " +
		"pipelines before committing. For current figures, consult recent CoreLogic or ABS releases.",
	location.ScopeBrisbane: "Brisbane and South East Queensland have seen sustained interstate migration " +
		"and infrastructure investment ahead of the 2032 Olympics, supporting both prices and rents. " +
		"Supply remains tight in the inner and middle rings. Check current CoreLogic data for up-to-date medians.",
	location.ScopeSydney: "Sydney remains Australia's most expensive market, with affordability constraining " +
		"first-home buyers and pushing demand toward units and outer growth corridors. Premium suburbs " +
		"tend to hold value through cycles. Review recent auction clearance rates for current momentum.",
	location.ScopeMelbourne: "Melbourne's market has historically tracked strong population growth, with " +
		"houses in the middle ring and established units showing resilient demand. Land tax settings and " +
		"new supply volumes are worth watching. Consult current CoreLogic medians for the latest position.",
	location.ScopePerth: "Perth's market is closely tied to the resources cycle, with recent years showing " +
		"strong price growth from a low base and tight rental vacancy. Affordability remains better than " +
		"the east-coast capitals. Check current vacancy and median data before acting.",
	location.ScopeAdelaide: "Adelaide has offered steady, lower-volatility growth with comparatively " +
		"affordable entry prices and solid yields. Supply constraints in established suburbs support " +
		"values. Review current sales data for the suburbs you are considering.",
	location.ScopeDarwin: "Darwin is a small, cyclical market sensitive to government and defence spending, " +
		"with high rental yields offsetting flatter capital growth. Liquidity can be thin, so allow for " +
		"longer selling times. Check current vacancy rates and project pipelines.",
}

func fallbackNarrative(scope location.Scope) string {
	if text, ok := fallbackNarratives[scope]; ok {
		return text
	}
	return fallbackNarratives[location.ScopeNational]
}

const apologyAnswer = "I apologize, but I encountered an error while analyzing your question. Please try again shortly."

const budgetExceededAnswer = "You have reached your session token limit. Please try again later or contact support to increase your allowance."
