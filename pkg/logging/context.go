package logging

import (
	"context"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	ContactIDKey contextKey = "contact_id"
	RuleIDKey    contextKey = "rule_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithContactID(ctx context.Context, contactID string) context.Context {
	return context.WithValue(ctx, ContactIDKey, contactID)
}

func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetContactID(ctx context.Context) string {
	if contactID, ok := ctx.Value(ContactIDKey).(string); ok {
		return contactID
	}
	return ""
}

func GetRuleID(ctx context.Context) string {
	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok {
		return ruleID
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if contactID := GetContactID(ctx); contactID != "" {
		fields = append(fields, "contact_id", contactID)
	}

	if ruleID := GetRuleID(ctx); ruleID != "" {
		fields = append(fields, "rule_id", ruleID)
	}

	return fields
}
