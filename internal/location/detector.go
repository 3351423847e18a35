// Package location maps free-text questions to a geographic analysis scope.
package location

import "strings"

// Scope is the geographic granularity a question is analyzed against.
type Scope string

const (
	ScopeNational  Scope = "National"
	ScopeBrisbane  Scope = "Brisbane"
	ScopeSydney    Scope = "Sydney"
	ScopeMelbourne Scope = "Melbourne"
	ScopePerth     Scope = "Perth"
	ScopeAdelaide  Scope = "Adelaide"
	ScopeDarwin    Scope = "Darwin"
)

type rule struct {
	scope    Scope
	focus    string
	keywords []string
}

// Table order is the tie-break: a question mentioning two cities resolves to
// the one listed first. Matching is substring containment, not word match.
var rules = []rule{
	{ScopeBrisbane, "Brisbane and Queensland", []string{"brisbane", "queensland", "qld", "gold coast", "sunshine coast"}},
	{ScopeSydney, "Sydney and New South Wales", []string{"sydney", "nsw", "new south wales"}},
	{ScopeMelbourne, "Melbourne and Victoria", []string{"melbourne", "victoria", "vic"}},
	{ScopePerth, "Perth and Western Australia", []string{"perth", "western australia", "wa"}},
	{ScopeAdelaide, "Adelaide and South Australia", []string{"adelaide", "south australia", "sa"}},
	// No "nt" abbreviation here; it substring-matches "rent", "current"
	// and "apartment".
	{ScopeDarwin, "Darwin and the Northern Territory", []string{"darwin", "northern territory"}},
}

// Detect returns the scope for a question. Empty input or no keyword match
// yields ScopeNational. Pure function, always returns a value.
func Detect(question string) Scope {
	lower := strings.ToLower(question)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.scope
			}
		}
	}
	return ScopeNational
}

// Focus returns the human-readable market focus used in prompts.
func (s Scope) Focus() string {
	for _, r := range rules {
		if r.scope == s {
			return r.focus
		}
	}
	return "the Australian national property market"
}

// Keywords returns the keyword set for a scope; empty for National.
func Keywords(s Scope) []string {
	for _, r := range rules {
		if r.scope == s {
			return r.keywords
		}
	}
	return nil
}
