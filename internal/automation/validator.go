package automation

import (
	"fmt"
	"net/url"
	"strings"

	"stealthtrack/pkg/errors"
)

var validOperators = map[Operator]bool{
	OperatorExists:    true,
	OperatorNotExists: true,
	OperatorEquals:    true,
	OperatorNotEquals: true,
	OperatorContains:  true,
}

func validateRuleFields(name, webhookURL string, filters []Filter, fieldMap []FieldMapping) error {
	if strings.TrimSpace(name) == "" {
		return errors.ErrValidation.WithDetail("message", "name is required")
	}
	if err := validateWebhookURL(webhookURL); err != nil {
		return err
	}
	for i, f := range filters {
		if !IsFilterField(f.Field) {
			return errors.ErrValidation.WithDetail("message",
				fmt.Sprintf("filters[%d]: unknown field %q", i, f.Field))
		}
		if !validOperators[f.Operator] {
			return errors.ErrValidation.WithDetail("message",
				fmt.Sprintf("filters[%d]: unknown operator %q", i, f.Operator))
		}
		switch f.Operator {
		case OperatorEquals, OperatorNotEquals, OperatorContains:
			if f.Value == "" {
				return errors.ErrValidation.WithDetail("message",
					fmt.Sprintf("filters[%d]: operator %q requires a value", i, f.Operator))
			}
		}
	}
	for i, m := range fieldMap {
		if !IsMappingSource(m.Source) {
			return errors.ErrValidation.WithDetail("message",
				fmt.Sprintf("field_map[%d]: unknown source %q", i, m.Source))
		}
		if strings.TrimSpace(m.Target) == "" {
			return errors.ErrValidation.WithDetail("message",
				fmt.Sprintf("field_map[%d]: target is required", i))
		}
	}
	return nil
}

func validateWebhookURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.ErrValidation.WithDetail("message", "webhook_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.ErrValidation.WithDetail("message", "webhook_url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.ErrValidation.WithDetail("message", "webhook_url must use http or https")
	}
	return nil
}
