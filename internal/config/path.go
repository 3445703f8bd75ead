package config

const (
	// ListingUrlPath is where the surface lands after a bind or a discard.
	ListingUrlPath = "/memories"

	DraftsUrlPath  = "/api/drafts"
	UploadsUrlPath = "/uploads/"
	MetricsUrlPath = "/metrics"
)
