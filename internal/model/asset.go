package model

// StagedAsset is an uploaded object whose ownership is not finalized yet.
// RemoteID is the only handle needed to delete it.
type StagedAsset struct {
	RemoteID string `json:"remoteId"`
	URL      string `json:"url"`
}
