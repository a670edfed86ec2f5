package automation

import "strings"

// Evaluate reports whether the contact attributes satisfy every filter.
// An empty filter list matches every contact. Absence is data, not an
// error: an unknown or missing field simply evaluates as absent.
func Evaluate(attributes map[string]string, filters []Filter) bool {
	for _, f := range filters {
		if !evaluateOne(attributes, f) {
			return false
		}
	}
	return true
}

func evaluateOne(attributes map[string]string, f Filter) bool {
	value, present := attributes[f.Field]
	if value == "" {
		present = false
	}

	switch f.Operator {
	case OperatorExists:
		return present
	case OperatorNotExists:
		return !present
	case OperatorEquals:
		return present && value == f.Value
	case OperatorNotEquals:
		// Absence counts as not equal, so a not_equals filter also
		// catches contacts that never got the field at all.
		return !present || value != f.Value
	case OperatorContains:
		return present && strings.Contains(value, f.Value)
	default:
		// Unknown operator: the rule never matches.
		return false
	}
}
