package automation

import (
	"time"
)

// Operator is the closed set of filter predicates.
type Operator string

const (
	OperatorExists    Operator = "exists"
	OperatorNotExists Operator = "not_exists"
	OperatorEquals    Operator = "equals"
	OperatorNotEquals Operator = "not_equals"
	OperatorContains  Operator = "contains"
)

// Filter is one field/operator/value predicate. Value is ignored for
// exists and not_exists.
type Filter struct {
	Field    string   `bson:"field" json:"field"`
	Operator Operator `bson:"operator" json:"operator"`
	Value    string   `bson:"value,omitempty" json:"value,omitempty"`
}

// FieldMapping renames a contact attribute into a payload key.
type FieldMapping struct {
	Source string `bson:"source" json:"source"`
	Target string `bson:"target" json:"target"`
}

// Rule is an operator-defined automation: if the filters match a newly
// identified contact, the mapped payload is POSTed to the webhook.
type Rule struct {
	ID              string         `bson:"_id" json:"id"`
	Name            string         `bson:"name" json:"name"`
	Enabled         bool           `bson:"enabled" json:"enabled"`
	WebhookURL      string         `bson:"webhook_url" json:"webhook_url"`
	Filters         []Filter       `bson:"filters" json:"filters"`
	FieldMap        []FieldMapping `bson:"field_map" json:"field_map"`
	TriggerCount    int64          `bson:"trigger_count" json:"trigger_count"`
	LastTriggeredAt *time.Time     `bson:"last_triggered_at,omitempty" json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at" json:"updated_at"`
}

// Run is one immutable ledger entry per dispatch attempt. WebhookURL is
// captured at fire time so later rule edits do not rewrite history.
type Run struct {
	ID           string            `bson:"_id" json:"id"`
	RuleID       string            `bson:"rule_id" json:"rule_id"`
	RunType      string            `bson:"run_type" json:"run_type"`
	TriggeredAt  time.Time         `bson:"triggered_at" json:"triggered_at"`
	ContactID    *string           `bson:"contact_id,omitempty" json:"contact_id"`
	Payload      map[string]string `bson:"payload" json:"payload"`
	WebhookURL   string            `bson:"webhook_url" json:"webhook_url"`
	Success      bool              `bson:"success" json:"success"`
	HTTPStatus   *int              `bson:"http_status,omitempty" json:"http_status"`
	ResponseBody *string           `bson:"response_body,omitempty" json:"response_body"`
	Error        *string           `bson:"error,omitempty" json:"error"`
	DurationMs   *int64            `bson:"duration_ms,omitempty" json:"duration_ms"`
}

// DispatchResult is the outcome of a single webhook POST.
type DispatchResult struct {
	Success      bool
	HTTPStatus   *int
	ResponseBody *string
	Error        *string
	DurationMs   int64
}

// CreateRuleRequest is the POST /automations body.
type CreateRuleRequest struct {
	Name       string         `json:"name"`
	Enabled    *bool          `json:"enabled"`
	WebhookURL string         `json:"webhook_url"`
	Filters    []Filter       `json:"filters"`
	FieldMap   []FieldMapping `json:"field_map"`
}

// UpdateRuleRequest is the PUT body. All fields are optional so a bare
// {"enabled": false} toggles without resubmitting the rest.
type UpdateRuleRequest struct {
	Name       *string         `json:"name"`
	Enabled    *bool           `json:"enabled"`
	WebhookURL *string         `json:"webhook_url"`
	Filters    *[]Filter       `json:"filters"`
	FieldMap   *[]FieldMapping `json:"field_map"`
}

// TestFireResponse is returned synchronously from the test harness.
type TestFireResponse struct {
	Status       string            `json:"status"`
	HTTPStatus   *int              `json:"http_status"`
	DurationMs   int64             `json:"duration_ms"`
	Payload      map[string]string `json:"payload"`
	ResponseBody *string           `json:"response_body"`
	Error        *string           `json:"error"`
}
