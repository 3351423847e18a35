// Package analysis implements the question-analysis pipeline: location
// detection, context gathering, the search decision, conditional web search
// and final synthesis.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	stderrors "property-intelligence/internal/common/errors"
	"property-intelligence/internal/common/logger"
	"property-intelligence/internal/common/metrics"
	"property-intelligence/internal/common/observability"
	"property-intelligence/internal/llm"
	"property-intelligence/internal/location"
	"property-intelligence/internal/rss"
	"property-intelligence/internal/websearch"
)

// TokenLedger sums a user's historical token spend for the budget gate.
type TokenLedger interface {
	SumUserTokens(ctx context.Context, userID string) (int64, error)
}

// ContextSource supplies scope-relevant news articles. Implementations
// never fail; an empty slice means no context.
type ContextSource interface {
	RelevantArticles(ctx context.Context, scope location.Scope) []rss.Article
}

// Searcher runs the conditional web search step.
type Searcher interface {
	Available() bool
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Options carries the pipeline tunables.
type Options struct {
	BudgetLimit        int64 // 0 disables the gate
	DecisionMaxTokens  int
	SynthesisMaxTokens int
	StepTimeout        time.Duration
	PresetQuestions    []string
}

// Service orchestrates one analysis per call. All collaborators are
// injected; any of them may be nil or unavailable and the pipeline
// degrades instead of failing.
type Service struct {
	claude llm.Provider
	gemini llm.Provider
	ledger TokenLedger
	news   ContextSource
	search Searcher
	opts   Options
	logger logger.Logger
	obs    *observability.Observability
}

func NewService(opts Options, claude, gemini llm.Provider, ledger TokenLedger,
	news ContextSource, search Searcher, log logger.Logger, obs *observability.Observability) *Service {
	return &Service{
		claude: claude,
		gemini: gemini,
		ledger: ledger,
		news:   news,
		search: search,
		opts:   opts,
		logger: log.With(map[string]interface{}{
			"component": "analysis",
		}),
		obs: obs,
	}
}

// Analyze runs the full pipeline. It never returns an error and never
// panics; every failure mode resolves to a well-formed Result.
func (s *Service) Analyze(ctx context.Context, req Request) (result Result) {
	start := time.Now()
	requestID := uuid.NewString()

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	log := s.logger.With(map[string]interface{}{
		"request_id": requestID,
		"user_id":    userID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic recovered", map[string]interface{}{
				"panic": r,
			})
			result = Result{
				Success:          false,
				FinalAnswer:      apologyAnswer,
				QuestionType:     s.questionType(req.Question),
				LocationDetected: location.Detect(req.Question),
				RequestID:        requestID,
			}
		}
		result.ProcessingTime = time.Since(start).Seconds()
		result.RequestID = requestID

		status := "error"
		if result.Success {
			status = "success"
		}
		metrics.AnalysesTotal.WithLabelValues(status).Inc()
		metrics.AnalysisDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if s.obs != nil {
			s.obs.RecordAnalysis(ctx, status)
			s.obs.RecordDuration(ctx, time.Since(start), status)
		}
	}()

	questionType := s.questionType(req.Question)

	// The budget gate runs strictly before any external call.
	if exceeded := s.budgetExceeded(ctx, userID, log); exceeded {
		metrics.BudgetRejectionsTotal.Inc()
		return Result{
			Success:          false,
			FinalAnswer:      budgetExceededAnswer,
			QuestionType:     questionType,
			LocationDetected: location.ScopeNational,
			BudgetExceeded:   true,
		}
	}

	scope := location.Detect(req.Question)
	log.Info("analysis started", map[string]interface{}{
		"location":      string(scope),
		"question_type": questionType,
	})

	var articles []rss.Article
	if s.news != nil {
		articles = s.news.RelevantArticles(ctx, scope)
	}

	totalTokens := 0

	decision, decisionTokens, decisionMade := s.decide(ctx, req.Question, scope, articles, log)
	totalTokens += decisionTokens

	var searchResults []websearch.Result
	searchPerformed := false
	if decision.Action == llm.ActionWebSearch && s.search != nil && s.search.Available() {
		searchResults = s.performSearch(ctx, decision.Query, log)
		searchPerformed = len(searchResults) > 0
	}

	answer, provider, synthTokens, ok := s.synthesize(ctx, req.Question, scope, articles, searchResults, log)
	totalTokens += synthTokens

	if !ok {
		return Result{
			Success:          false,
			FinalAnswer:      apologyAnswer,
			QuestionType:     questionType,
			LLMProvider:      provider,
			TokenUsage:       totalTokens,
			LocationDetected: scope,
			SearchPerformed:  searchPerformed,
		}
	}

	confidence := confidenceDegraded
	if provider != ProviderFallback && decisionMade &&
		(decision.Action != llm.ActionWebSearch || searchPerformed) {
		confidence = confidenceFull
	}

	log.Info("analysis complete", map[string]interface{}{
		"provider":         provider,
		"tokens":           totalTokens,
		"search_performed": searchPerformed,
	})

	return Result{
		Success:          true,
		FinalAnswer:      answer,
		Confidence:       confidence,
		QuestionType:     questionType,
		LLMProvider:      provider,
		TokenUsage:       totalTokens,
		LocationDetected: scope,
		SearchPerformed:  searchPerformed,
	}
}

// budgetExceeded recomputes the user's cumulative spend on every request.
// A ledger read failure fails open so persistence trouble cannot take the
// whole pipeline down.
func (s *Service) budgetExceeded(ctx context.Context, userID string, log logger.Logger) bool {
	if s.opts.BudgetLimit <= 0 || s.ledger == nil {
		return false
	}
	used, err := s.ledger.SumUserTokens(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("token ledger read failed, skipping budget gate", nil)
		return false
	}
	if used >= s.opts.BudgetLimit {
		log.WithError(stderrors.NewBudgetExceededError(userID, used, s.opts.BudgetLimit)).
			Warn("token budget exceeded", nil)
		return true
	}
	return false
}

// decide runs the routing call against the first available provider in
// claude-then-gemini order. No provider or a failed call degrades to
// analyze_directly with zero tokens; the third return reports whether a
// decision call actually completed.
func (s *Service) decide(ctx context.Context, question string, scope location.Scope,
	articles []rss.Article, log logger.Logger) (llm.Decision, int, bool) {

	direct := llm.Decision{Action: llm.ActionAnalyzeDirectly, Reason: "no decision provider available"}

	provider := llm.FirstAvailable(s.claude, s.gemini)
	if provider == nil {
		return direct, 0, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	res, err := provider.Generate(callCtx, buildDecisionPrompt(question, scope, articles), s.opts.DecisionMaxTokens)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "decision", "error").Inc()
		log.WithError(s.callError(provider.Name(), err)).Warn("decision call failed, analyzing directly", nil)
		direct.Reason = "decision call failed"
		return direct, 0, false
	}

	metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "decision", "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(provider.Name()).Add(float64(res.TokensUsed))

	decision := llm.ParseDecision(res.Text)
	if decision.Reason == llm.ReasonMalformed {
		log.WithError(stderrors.NewMalformedDecisionError(res.Text)).
			Warn("decision response unparseable, analyzing directly", nil)
	}
	log.Debug("search decision", map[string]interface{}{
		"action": string(decision.Action),
		"query":  decision.Query,
		"reason": decision.Reason,
	})
	return decision, res.TokensUsed, true
}

// performSearch never fails the request; errors come back as no results.
func (s *Service) performSearch(ctx context.Context, query string, log logger.Logger) []websearch.Result {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
	defer cancel()

	results, err := s.search.Search(callCtx, query)
	if err != nil {
		log.WithError(stderrors.NewWebSearchFailedError(err)).Warn("web search failed, proceeding without it", map[string]interface{}{
			"query": query,
		})
		return nil
	}
	return results
}

// callError maps a binding failure to the standard error model for logging.
func (s *Service) callError(provider string, err error) error {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return stderrors.NewLLMTimeoutError(provider)
	case errors.Is(err, llm.ErrProviderUnavailable):
		return stderrors.NewProviderUnavailableError(provider)
	default:
		return stderrors.NewLLMCallFailedError(provider, err)
	}
}

// synthesize produces the final answer. Preference order is reversed from
// the decision step to spread load across vendors; if one call fails the
// other provider is tried once. With no provider at all the static
// narrative is served as a successful degraded answer.
func (s *Service) synthesize(ctx context.Context, question string, scope location.Scope,
	articles []rss.Article, searchResults []websearch.Result, log logger.Logger) (string, string, int, bool) {

	prompt := buildSynthesisPrompt(question, scope, articles, searchResults)

	primary := llm.FirstAvailable(s.gemini, s.claude)
	if primary == nil {
		log.Warn("no LLM provider available, serving fallback narrative", nil)
		return fallbackNarrative(scope), ProviderFallback, 0, true
	}

	for _, provider := range s.synthesisOrder(primary) {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
		res, err := provider.Generate(callCtx, prompt, s.opts.SynthesisMaxTokens)
		cancel()
		if err != nil {
			metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "synthesis", "error").Inc()
			log.WithError(s.callError(provider.Name(), err)).Warn("synthesis call failed", nil)
			continue
		}
		metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "synthesis", "success").Inc()
		metrics.LLMTokensTotal.WithLabelValues(provider.Name()).Add(float64(res.TokensUsed))
		return res.Text, provider.Name(), res.TokensUsed, true
	}

	return "", "", 0, false
}

// synthesisOrder lists the primary provider followed by any other
// available one.
func (s *Service) synthesisOrder(primary llm.Provider) []llm.Provider {
	order := []llm.Provider{primary}
	for _, p := range []llm.Provider{s.gemini, s.claude} {
		if p != nil && p.Available() && p != primary {
			order = append(order, p)
		}
	}
	return order
}

func (s *Service) questionType(question string) string {
	for _, preset := range s.opts.PresetQuestions {
		if preset == question {
			return QuestionTypePreset
		}
	}
	return QuestionTypeCustom
}
