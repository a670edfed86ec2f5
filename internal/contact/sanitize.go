package contact

import "stealthtrack/internal/constants"

var knownAttributionKeys = map[string]func(*Attribution, string){
	"utm_source":         func(a *Attribution, v string) { a.UTMSource = v },
	"utm_medium":         func(a *Attribution, v string) { a.UTMMedium = v },
	"utm_campaign":       func(a *Attribution, v string) { a.UTMCampaign = v },
	"utm_term":           func(a *Attribution, v string) { a.UTMTerm = v },
	"utm_content":        func(a *Attribution, v string) { a.UTMContent = v },
	"fbclid":             func(a *Attribution, v string) { a.FBClid = v },
	"gclid":              func(a *Attribution, v string) { a.GClid = v },
	"ttclid":             func(a *Attribution, v string) { a.TTClid = v },
	"source_link_tag":    func(a *Attribution, v string) { a.SourceLinkTag = v },
	"fb_ad_set_id":       func(a *Attribution, v string) { a.FBAdSetID = v },
	"google_campaign_id": func(a *Attribution, v string) { a.GoogleCampaignID = v },
}

// SanitizeAttribution filters tracker-supplied attribution down to the
// known parameter set, capping value lengths. Unknown parameters are
// kept in Extra with a tighter cap. Returns nil when nothing survives.
func SanitizeAttribution(raw map[string]string) *Attribution {
	if len(raw) == 0 {
		return nil
	}

	attr := &Attribution{}
	for k, v := range raw {
		if v == "" || k == "extra" {
			continue
		}
		if setter, ok := knownAttributionKeys[k]; ok {
			setter(attr, truncate(v, constants.AttributionValueCap))
			continue
		}
		if attr.Extra == nil {
			attr.Extra = make(map[string]string)
		}
		attr.Extra[k] = truncate(v, constants.AttributionExtraCap)
	}

	if attr.IsZero() {
		return nil
	}
	return attr
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// attributionMap is the bson-key view used when merging attribution
// fields into an existing document one key at a time.
func attributionMap(a *Attribution) map[string]string {
	if a == nil {
		return nil
	}
	out := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("utm_source", a.UTMSource)
	put("utm_medium", a.UTMMedium)
	put("utm_campaign", a.UTMCampaign)
	put("utm_term", a.UTMTerm)
	put("utm_content", a.UTMContent)
	put("fbclid", a.FBClid)
	put("gclid", a.GClid)
	put("ttclid", a.TTClid)
	put("source_link_tag", a.SourceLinkTag)
	put("fb_ad_set_id", a.FBAdSetID)
	put("google_campaign_id", a.GoogleCampaignID)
	return out
}

// attributionHas reports whether the given known key is already set.
func attributionHas(a *Attribution, key string) bool {
	if a == nil {
		return false
	}
	return attributionMap(a)[key] != ""
}
