package constants

import "time"

const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultBodyCapBytes   = 4096
)

const (
	CollectionContacts   = "contacts"
	CollectionPageVisits = "page_visits"
	CollectionRules      = "automation_rules"
	CollectionRuns       = "automation_runs"
)

const (
	IdentifiedKeyPrefix  = "identified:"
	DefaultIdentifiedTTL = 24 * time.Hour
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultRunsLimit    = 50
	MaxRunsLimit        = 200
	DefaultContactLimit = 1000
	MaxVisitsPerContact = 500
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	AttributionValueCap = 500
	AttributionExtraCap = 200
)

const (
	AutoStitchWindow     = 5 * time.Minute
	AutoStitchCandidates = 10
)

const (
	RunTypeLive = "live"
	RunTypeTest = "test"
)

const (
	DefaultDispatchConcurrency = 8
	EventBusBuffer             = 1024
)
