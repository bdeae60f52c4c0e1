package persistence

import (
	"context"
	"fmt"

	"sharkwatch/internal/core"
)

// SaveValidationLog audits one relevance decision for one raw item (spec
// §4.C: every Evaluate call, keyword or LLM, produces one row here).
func (s *Store) SaveValidationLog(ctx context.Context, log core.ValidationLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_logs
			(raw_item_id, method, result, llm_response, llm_model, keyword_match,
			 entities_found, reason, latency_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	`, log.RawItemID, log.Method, log.Result, log.LLMResponse, log.LLMModel, log.KeywordMatch,
		int64Array(log.EntitiesFound), log.Reason, log.LatencyMS, log.ErrorMessage)
	if err != nil {
		return fmt.Errorf("saving validation log for raw item %d: %w", log.RawItemID, err)
	}
	return nil
}
