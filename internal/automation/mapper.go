package automation

// BuildPayload produces the outbound webhook body. With no mappings,
// every non-empty first-class attribute passes through under its own
// name. With mappings, each source that is present emits {target:
// value}; absent sources are omitted rather than sent as empty keys.
// Duplicate targets resolve last-wins.
func BuildPayload(attributes map[string]string, fieldMap []FieldMapping) map[string]string {
	payload := make(map[string]string)

	if len(fieldMap) == 0 {
		for _, field := range passthroughFields {
			if v := attributes[field]; v != "" {
				payload[field] = v
			}
		}
		return payload
	}

	for _, m := range fieldMap {
		if v := attributes[m.Source]; v != "" {
			payload[m.Target] = v
		}
	}
	return payload
}
