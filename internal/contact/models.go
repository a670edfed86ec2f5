package contact

import (
	"time"
)

// Attribution holds the marketing parameters captured by the tracker.
// Unknown parameters land in Extra.
type Attribution struct {
	UTMSource        string            `bson:"utm_source,omitempty" json:"utm_source,omitempty"`
	UTMMedium        string            `bson:"utm_medium,omitempty" json:"utm_medium,omitempty"`
	UTMCampaign      string            `bson:"utm_campaign,omitempty" json:"utm_campaign,omitempty"`
	UTMTerm          string            `bson:"utm_term,omitempty" json:"utm_term,omitempty"`
	UTMContent       string            `bson:"utm_content,omitempty" json:"utm_content,omitempty"`
	FBClid           string            `bson:"fbclid,omitempty" json:"fbclid,omitempty"`
	GClid            string            `bson:"gclid,omitempty" json:"gclid,omitempty"`
	TTClid           string            `bson:"ttclid,omitempty" json:"ttclid,omitempty"`
	SourceLinkTag    string            `bson:"source_link_tag,omitempty" json:"source_link_tag,omitempty"`
	FBAdSetID        string            `bson:"fb_ad_set_id,omitempty" json:"fb_ad_set_id,omitempty"`
	GoogleCampaignID string            `bson:"google_campaign_id,omitempty" json:"google_campaign_id,omitempty"`
	Extra            map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`
}

// IsZero reports whether no attribution value is set, Extra included.
func (a *Attribution) IsZero() bool {
	if a == nil {
		return true
	}
	return a.UTMSource == "" && a.UTMMedium == "" && a.UTMCampaign == "" &&
		a.UTMTerm == "" && a.UTMContent == "" && a.FBClid == "" &&
		a.GClid == "" && a.TTClid == "" && a.SourceLinkTag == "" &&
		a.FBAdSetID == "" && a.GoogleCampaignID == "" && len(a.Extra) == 0
}

// HasCampaignData reports whether any known (non-Extra) attribution
// value is set. Used by the IP auto-stitch heuristic.
func (a *Attribution) HasCampaignData() bool {
	if a == nil {
		return false
	}
	return a.UTMSource != "" || a.UTMMedium != "" || a.UTMCampaign != "" ||
		a.UTMTerm != "" || a.UTMContent != "" || a.FBClid != "" ||
		a.GClid != "" || a.TTClid != "" || a.SourceLinkTag != "" ||
		a.FBAdSetID != "" || a.GoogleCampaignID != ""
}

// Contact is a visitor record keyed by the device-persistent contact_id.
type Contact struct {
	ID             string       `bson:"id" json:"id"`
	ContactID      string       `bson:"contact_id" json:"contact_id"`
	SessionID      string       `bson:"session_id,omitempty" json:"session_id,omitempty"`
	ClientIP       string       `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	Name           string       `bson:"name,omitempty" json:"name,omitempty"`
	Email          string       `bson:"email,omitempty" json:"email,omitempty"`
	Phone          string       `bson:"phone,omitempty" json:"phone,omitempty"`
	FirstName      string       `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName       string       `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Attribution    *Attribution `bson:"attribution,omitempty" json:"attribution,omitempty"`
	MergedInto     string       `bson:"merged_into,omitempty" json:"merged_into,omitempty"`
	MergedChildren []string     `bson:"merged_children,omitempty" json:"merged_children,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `bson:"updated_at" json:"updated_at"`
}

// Identified reports whether identity data has been captured.
func (c *Contact) Identified() bool {
	return c.Email != "" || c.Phone != "" || c.Name != ""
}

// Flatten produces the attribute view rules and payload mappings are
// evaluated against. Attribution ad identifiers flatten to their
// canonical names (adset_id, campaign_id). Empty values are omitted.
func (c *Contact) Flatten() map[string]string {
	out := make(map[string]string)
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	put("contact_id", c.ContactID)
	put("session_id", c.SessionID)
	put("client_ip", c.ClientIP)
	put("name", c.Name)
	put("email", c.Email)
	put("phone", c.Phone)
	put("first_name", c.FirstName)
	put("last_name", c.LastName)
	if !c.CreatedAt.IsZero() {
		put("created_at", c.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !c.UpdatedAt.IsZero() {
		put("updated_at", c.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if a := c.Attribution; a != nil {
		put("utm_source", a.UTMSource)
		put("utm_medium", a.UTMMedium)
		put("utm_campaign", a.UTMCampaign)
		put("utm_term", a.UTMTerm)
		put("utm_content", a.UTMContent)
		put("fbclid", a.FBClid)
		put("gclid", a.GClid)
		put("ttclid", a.TTClid)
		put("source_link_tag", a.SourceLinkTag)
		put("adset_id", a.FBAdSetID)
		put("campaign_id", a.GoogleCampaignID)
	}
	return out
}

// PageVisit is one tracked page load.
type PageVisit struct {
	ID                string       `bson:"id" json:"id"`
	ContactID         string       `bson:"contact_id" json:"contact_id"`
	OriginalContactID string       `bson:"original_contact_id,omitempty" json:"original_contact_id,omitempty"`
	SessionID         string       `bson:"session_id,omitempty" json:"session_id,omitempty"`
	ClientIP          string       `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	CurrentURL        string       `bson:"current_url" json:"current_url"`
	ReferrerURL       string       `bson:"referrer_url,omitempty" json:"referrer_url,omitempty"`
	PageTitle         string       `bson:"page_title,omitempty" json:"page_title,omitempty"`
	Attribution       *Attribution `bson:"attribution,omitempty" json:"attribution,omitempty"`
	Timestamp         time.Time    `bson:"timestamp" json:"timestamp"`
}

// PageViewRequest is the tracker's pageview beacon.
type PageViewRequest struct {
	ContactID   string            `json:"contact_id" binding:"required"`
	SessionID   string            `json:"session_id"`
	CurrentURL  string            `json:"current_url" binding:"required"`
	ReferrerURL string            `json:"referrer_url"`
	PageTitle   string            `json:"page_title"`
	Attribution map[string]string `json:"attribution"`
}

// LeadRequest carries identity fields captured from a form field change.
type LeadRequest struct {
	ContactID   string            `json:"contact_id" binding:"required"`
	SessionID   string            `json:"session_id"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Name        string            `json:"name"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	CurrentURL  string            `json:"current_url"`
	ReferrerURL string            `json:"referrer_url"`
	PageTitle   string            `json:"page_title"`
	Attribution map[string]string `json:"attribution"`
}

// RegistrationRequest carries a full form submission.
type RegistrationRequest struct {
	ContactID   string            `json:"contact_id" binding:"required"`
	SessionID   string            `json:"session_id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	CurrentURL  string            `json:"current_url"`
	ReferrerURL string            `json:"referrer_url"`
	PageTitle   string            `json:"page_title"`
	Attribution map[string]string `json:"attribution"`
}

// StitchRequest merges child_contact_id into parent_contact_id.
type StitchRequest struct {
	ParentContactID string `json:"parent_contact_id" binding:"required"`
	ChildContactID  string `json:"child_contact_id" binding:"required"`
	SessionID       string `json:"session_id"`
}

// StitchResult describes the outcome of a stitch attempt.
type StitchResult struct {
	Status          string `json:"status"`
	ParentContactID string `json:"parent_contact_id,omitempty"`
	ChildContactID  string `json:"child_contact_id,omitempty"`
	MergedInto      string `json:"merged_into,omitempty"`
}

const (
	StitchStatusStitched      = "stitched"
	StitchStatusAlreadyMerged = "already_merged"
	StitchStatusSame          = "same"
	StitchStatusNotFound      = "not_found"
)

// ContactWithStats is the list view row.
type ContactWithStats struct {
	Contact    `bson:",inline"`
	VisitCount int64 `json:"visit_count"`
}

// ContactDetail is the single-contact view with its visit history.
type ContactDetail struct {
	Contact `bson:",inline"`
	Visits  []PageVisit `json:"visits"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	TotalContacts int64 `json:"total_contacts"`
	TotalVisits   int64 `json:"total_visits"`
	TodayVisits   int64 `json:"today_visits"`
}

// TrackUpdate is the normalized input applied by the upsert: whichever
// ingestion endpoint received the beacon, these are the fields that may
// fill in the contact.
type TrackUpdate struct {
	ContactID   string
	SessionID   string
	Name        string
	Email       string
	Phone       string
	FirstName   string
	LastName    string
	Attribution *Attribution
}
