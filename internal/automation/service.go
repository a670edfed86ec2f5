package automation

import (
	"context"
	"time"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/logger"
	"stealthtrack/pkg/errors"
	"stealthtrack/pkg/logging"
	"stealthtrack/pkg/metrics"
)

// Service owns rule CRUD and the test harness.
type Service struct {
	rules      Repository
	runs       RunRepository
	dispatcher *Dispatcher
	recorder   *Recorder
	log        logger.Logger
}

func NewService(rules Repository, runs RunRepository, dispatcher *Dispatcher, recorder *Recorder, log logger.Logger) *Service {
	return &Service{
		rules:      rules,
		runs:       runs,
		dispatcher: dispatcher,
		recorder:   recorder,
		log:        log,
	}
}

func (s *Service) CreateRule(ctx context.Context, req *CreateRuleRequest) (*Rule, error) {
	if err := validateRuleFields(req.Name, req.WebhookURL, req.Filters, req.FieldMap); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &Rule{
		Name:       req.Name,
		Enabled:    enabled,
		WebhookURL: req.WebhookURL,
		Filters:    req.Filters,
		FieldMap:   req.FieldMap,
	}
	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.log.InfowCtx(ctx, "Automation rule created", "rule_id", rule.ID, "name", rule.Name)
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

func (s *Service) GetRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, errors.ErrNotFound.WithDetail("message", "rule not found")
	}
	return rule, nil
}

// UpdateRule applies a partial update: only the supplied fields change,
// so {"enabled": false} alone toggles the rule.
func (s *Service) UpdateRule(ctx context.Context, id string, req *UpdateRuleRequest) (*Rule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.WebhookURL != nil {
		rule.WebhookURL = *req.WebhookURL
	}
	if req.Filters != nil {
		rule.Filters = *req.Filters
	}
	if req.FieldMap != nil {
		rule.FieldMap = *req.FieldMap
	}
	if rule.Filters == nil {
		rule.Filters = []Filter{}
	}
	if rule.FieldMap == nil {
		rule.FieldMap = []FieldMapping{}
	}

	if err := validateRuleFields(rule.Name, rule.WebhookURL, rule.Filters, rule.FieldMap); err != nil {
		return nil, err
	}

	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	s.log.InfowCtx(ctx, "Automation rule updated", "rule_id", rule.ID)
	return rule, nil
}

// DeleteRule removes the rule and cascades its run history.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	deleted, err := s.rules.DeleteRule(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.ErrNotFound.WithDetail("message", "rule not found")
	}
	if err := s.runs.DeleteRunsByRule(ctx, id); err != nil {
		return err
	}
	s.log.InfowCtx(ctx, "Automation rule deleted", "rule_id", id)
	return nil
}

func (s *Service) ListRuns(ctx context.Context, ruleID string, limit int64) ([]Run, error) {
	if _, err := s.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListRunsByRule(ctx, ruleID, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

// sampleAttributes is the synthetic contact a test fire maps against.
// Values are recognizably fake so a receiving system can tell a test
// from a real lead.
func sampleAttributes() map[string]string {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]string{
		"contact_id":   "test-contact-id",
		"session_id":   "test-session-id",
		"client_ip":    "203.0.113.10",
		"name":         "Test Contact",
		"email":        "test@example.com",
		"phone":        "+15555550100",
		"first_name":   "Test",
		"last_name":    "Contact",
		"utm_source":   "test_source",
		"utm_medium":   "test_medium",
		"utm_campaign": "test_campaign",
		"created_at":   now,
		"updated_at":   now,
	}
}

// TestFire dispatches the rule once against a synthetic contact and
// returns the outcome synchronously. Filters are intentionally skipped:
// a test fire validates connectivity and payload shape, not matching.
// The attempt is recorded as a test run and never touches counters.
func (s *Service) TestFire(ctx context.Context, ruleID string) (*TestFireResponse, error) {
	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithRuleID(ctx, rule.ID)

	payload := BuildPayload(sampleAttributes(), rule.FieldMap)
	result := s.dispatcher.Dispatch(ctx, rule.WebhookURL, payload)
	metrics.IncDispatch(constants.RunTypeTest, result.Success)
	metrics.ObserveDispatchDuration(time.Duration(result.DurationMs)*time.Millisecond, result.Success)

	if _, err := s.recorder.Record(ctx, rule.ID, constants.RunTypeTest, nil, payload, rule.WebhookURL, result); err != nil {
		return nil, err
	}

	status := "ok"
	if !result.Success {
		status = "error"
	}
	return &TestFireResponse{
		Status:       status,
		HTTPStatus:   result.HTTPStatus,
		DurationMs:   result.DurationMs,
		Payload:      payload,
		ResponseBody: result.ResponseBody,
		Error:        result.Error,
	}, nil
}
