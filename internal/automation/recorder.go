package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/logger"
	"stealthtrack/pkg/metrics"
)

// Recorder writes one ledger entry per dispatch attempt. Live runs also
// bump the owning rule's trigger counter; test runs leave statistics
// untouched.
type Recorder struct {
	rules Repository
	runs  RunRepository
	log   logger.Logger
}

func NewRecorder(rules Repository, runs RunRepository, log logger.Logger) *Recorder {
	return &Recorder{rules: rules, runs: runs, log: log}
}

// Record persists the run. The counter counts attempts: a failing
// webhook still triggered.
func (r *Recorder) Record(ctx context.Context, ruleID, runType string, contactID *string, payload map[string]string, webhookURL string, result DispatchResult) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:           uuid.New().String(),
		RuleID:       ruleID,
		RunType:      runType,
		TriggeredAt:  now,
		ContactID:    contactID,
		Payload:      payload,
		WebhookURL:   webhookURL,
		Success:      result.Success,
		HTTPStatus:   result.HTTPStatus,
		ResponseBody: result.ResponseBody,
		Error:        result.Error,
		DurationMs:   int64Ptr(result.DurationMs),
	}

	if err := r.runs.InsertRun(ctx, run); err != nil {
		return nil, err
	}
	metrics.IncRunRecorded(runType)

	if runType == constants.RunTypeLive {
		if err := r.rules.IncrementTriggerCount(ctx, ruleID, now); err != nil {
			r.log.ErrorwCtx(ctx, "Failed to increment trigger count",
				"rule_id", ruleID,
				"error", err,
			)
			return run, err
		}
	}

	return run, nil
}
