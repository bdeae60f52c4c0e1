// Package relevance decides whether a raw item is on-topic, using a
// keyword strategy, an LLM strategy, or both (evaluation mode), adapted
// from the teacher's scored-filtering package and grounded on the original
// Ollama relevance service's fail-open semantics.
package relevance

import (
	"context"
	"strings"
	"time"

	"sharkwatch/internal/core"
	"sharkwatch/internal/llm"
	"sharkwatch/internal/textnorm"
)

// OllamaClient is the subset of llm.Client the filter depends on, so tests
// can substitute a fake.
type OllamaClient interface {
	CheckRelevance(ctx context.Context, title, description string) llm.RelevanceResult
	Model() string
}

// Config controls which strategies run and how keyword matching behaves.
type Config struct {
	LLMEnabled       bool
	EvaluationMode   bool
	TopicKeywords    []string
}

// Filter decides relevance for a raw item and produces the ValidationLog
// row to persist alongside the decision.
type Filter struct {
	cfg    Config
	ollama OllamaClient
}

// NewFilter builds a Filter. ollama may be nil if LLMEnabled is false.
func NewFilter(cfg Config, ollama OllamaClient) *Filter {
	return &Filter{cfg: cfg, ollama: ollama}
}

// Decision is the outcome of a relevance check for one item.
type Decision struct {
	Approved bool
	Log      core.ValidationLog
}

// Evaluate runs the configured strategy against a raw item. skipCheck
// bypasses both strategies and approves unconditionally (for sources that
// only ever publish on-topic content), recording a "skip" ValidationLog.
func (f *Filter) Evaluate(ctx context.Context, rawItemID int64, title, description string, entityIDs []int64, skipCheck bool) Decision {
	if skipCheck {
		return Decision{
			Approved: true,
			Log: core.ValidationLog{
				RawItemID: rawItemID,
				Method:    core.RelevanceMethodSkip,
				Result:    core.RelevanceResultApproved,
				EntitiesFound: entityIDs,
				CreatedAt: time.Now(),
			},
		}
	}

	keywordApproved, keywordMatch := f.keywordDecision(title, entityIDs)

	useLLM := f.cfg.LLMEnabled && f.ollama != nil
	if !useLLM {
		return Decision{
			Approved: keywordApproved,
			Log:      f.keywordLog(rawItemID, keywordApproved, keywordMatch, entityIDs),
		}
	}

	start := time.Now()
	llmRes := f.ollama.CheckRelevance(ctx, title, description)
	latency := time.Since(start).Milliseconds()
	if llmRes.LatencyMS > 0 {
		latency = llmRes.LatencyMS
	}

	if f.cfg.EvaluationMode {
		// Keyword decides; LLM result is recorded for disagreement analysis
		// (Open Question c).
		logEntry := f.keywordLog(rawItemID, keywordApproved, keywordMatch, entityIDs)
		logEntry.LLMResponse = llmRes.RawResponse
		logEntry.LLMModel = f.ollama.Model()
		if llmRes.Error != nil {
			logEntry.ErrorMessage = llmRes.Error.Error()
		}
		return Decision{Approved: keywordApproved, Log: logEntry}
	}

	result := core.RelevanceResultApproved
	if !llmRes.IsRelevant {
		result = core.RelevanceResultRejected
	}
	errMsg := ""
	if llmRes.Error != nil {
		result = core.RelevanceResultError
		errMsg = llmRes.Error.Error()
	}

	return Decision{
		Approved: llmRes.IsRelevant,
		Log: core.ValidationLog{
			RawItemID:     rawItemID,
			Method:        core.RelevanceMethodLLM,
			Result:        result,
			LLMResponse:   llmRes.RawResponse,
			LLMModel:      f.ollama.Model(),
			EntitiesFound: entityIDs,
			LatencyMS:     latency,
			ErrorMessage:  errMsg,
			CreatedAt:     time.Now(),
		},
	}
}

// keywordDecision approves when the title contains a configured topic
// keyword, or when at least one non-team entity was found. A team entity
// alone (e.g. the club's own name appearing in site chrome) never
// establishes relevance by itself.
func (f *Filter) keywordDecision(title string, entityIDs []int64) (approved bool, matched bool) {
	for _, kw := range f.cfg.TopicKeywords {
		if kw == "" {
			continue
		}
		if textnorm.WordBoundaryMatch(title, kw) {
			return true, true
		}
	}
	if len(entityIDs) > 0 {
		return true, false
	}
	return false, false
}

func (f *Filter) keywordLog(rawItemID int64, approved, matched bool, entityIDs []int64) core.ValidationLog {
	result := core.RelevanceResultRejected
	if approved {
		result = core.RelevanceResultApproved
	}
	m := matched
	return core.ValidationLog{
		RawItemID:     rawItemID,
		Method:        core.RelevanceMethodKeyword,
		Result:        result,
		KeywordMatch:  &m,
		EntitiesFound: entityIDs,
		Reason:        keywordReason(approved, matched, len(entityIDs) > 0),
		CreatedAt:     time.Now(),
	}
}

func keywordReason(approved, titleMatch, hasEntities bool) string {
	switch {
	case approved && titleMatch:
		return "title contains a topic keyword"
	case approved && hasEntities:
		return "non-team entity present"
	default:
		return "no topic keyword or non-team entity found"
	}
}

// NormalizeForMatch joins title+description (case unchanged) for callers
// that want a single blob to run entity extraction against before calling
// Evaluate.
func NormalizeForMatch(title, description string) string {
	return strings.TrimSpace(title + " " + description)
}
