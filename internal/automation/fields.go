package automation

// Contact attributes rules may reference. Filters see the narrower set
// an operator can reason about when segmenting leads; mappings may pull
// from everything the flattened contact view exposes. Unknown names are
// rejected at save time; at evaluation time they behave as absent.

var filterFields = map[string]bool{
	"email":        true,
	"phone":        true,
	"name":         true,
	"utm_source":   true,
	"utm_campaign": true,
	"utm_medium":   true,
	"fbclid":       true,
	"gclid":        true,
	"campaign_id":  true,
	"adset_id":     true,
	"client_ip":    true,
}

var mappingSources = map[string]bool{
	"contact_id":      true,
	"session_id":      true,
	"client_ip":       true,
	"name":            true,
	"email":           true,
	"phone":           true,
	"first_name":      true,
	"last_name":       true,
	"utm_source":      true,
	"utm_medium":      true,
	"utm_campaign":    true,
	"utm_term":        true,
	"utm_content":     true,
	"fbclid":          true,
	"gclid":           true,
	"ttclid":          true,
	"source_link_tag": true,
	"campaign_id":     true,
	"adset_id":        true,
	"created_at":      true,
	"updated_at":      true,
}

// passthroughFields is the key set emitted when a rule has no field map:
// every first-class attribute, by its own name. Same set as mapping
// sources minus the record timestamps.
var passthroughFields = []string{
	"contact_id",
	"session_id",
	"client_ip",
	"name",
	"email",
	"phone",
	"first_name",
	"last_name",
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"fbclid",
	"gclid",
	"ttclid",
	"source_link_tag",
	"campaign_id",
	"adset_id",
}

func IsFilterField(name string) bool {
	return filterFields[name]
}

func IsMappingSource(name string) bool {
	return mappingSources[name]
}
