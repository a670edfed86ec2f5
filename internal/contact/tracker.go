package contact

import (
	_ "embed"
	"strings"
)

// The browser tracker is served by the backend itself so customer sites
// embed a single script tag pointing here. The backend URL is substituted
// at startup; left empty, the script falls back to same-origin requests.

//go:embed tracker.js
var trackerTemplate string

const trackerURLPlaceholder = "__BACKEND_URL__"

// RenderTrackerScript produces the tracker with the backend URL baked in.
func RenderTrackerScript(backendURL string) []byte {
	backendURL = strings.TrimRight(strings.TrimSpace(backendURL), "/")
	return []byte(strings.Replace(trackerTemplate, trackerURLPlaceholder, backendURL, 1))
}
