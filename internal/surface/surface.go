package surface

import (
	"errors"

	"github.com/debemdeboas/memories/internal/bind"
	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/staging"
)

type ErrorKind string

const (
	ErrorUpload      ErrorKind = "upload"
	ErrorDelete      ErrorKind = "delete"
	ErrorValidation  ErrorKind = "validation"
	ErrorRecordStore ErrorKind = "record-store"
)

// KindOf classifies a user-facing error. ok is false for errors the surface
// has no dedicated message for.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var (
		upErr  *staging.UploadError
		delErr *staging.DeleteError
		valErr *draft.ValidationError
		rsErr  *bind.RecordStoreError
	)
	switch {
	case errors.As(err, &upErr):
		return ErrorUpload, true
	case errors.As(err, &delErr):
		return ErrorDelete, true
	case errors.As(err, &valErr):
		return ErrorValidation, true
	case errors.As(err, &rsErr):
		return ErrorRecordStore, true
	}
	return "", false
}

// Surface is the browser side of one draft, as seen from the core.
type Surface struct {
	hub *Hub
	id  draft.ID
}

func (h *Hub) For(id draft.ID) *Surface {
	return &Surface{hub: h, id: id}
}

func (s *Surface) ShowDiscardPrompt() {
	s.hub.Broadcast(s.id, Event{Name: EventDiscardPrompt})
}

func (s *Surface) NavigateTo(view string) {
	s.hub.Broadcast(s.id, Event{Name: EventNavigate, Data: view})
}

// ReportError pushes the error kind for errors the user can act on; others
// are only logged.
func (s *Surface) ReportError(err error) {
	kind, ok := KindOf(err)
	if !ok {
		surfaceLogger.Debug().Err(err).Str("draft_id", string(s.id)).Msg("Unclassified error not reported to surface")
		return
	}
	s.hub.Broadcast(s.id, Event{Name: EventError, Data: string(kind)})
}
