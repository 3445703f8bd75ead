package staging

import "fmt"

// UploadError means the asset never reached the object store. The asset must
// not be added to the draft.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteError means a staged asset could not be removed from the object store.
type DeleteError struct {
	RemoteID string
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete of %q failed: %v", e.RemoteID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
