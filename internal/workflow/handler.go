package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/abandon"
	"github.com/debemdeboas/memories/internal/auth"
	"github.com/debemdeboas/memories/internal/bind"
	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/objectstore"
	"github.com/debemdeboas/memories/internal/staging"
	"github.com/debemdeboas/memories/internal/util"
)

// uploadField is the multipart field holding the image.
const uploadField = "file"

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/avif": true,
}

type Handler struct {
	svc  *Service
	auth auth.AuthProvider

	maxUploadBytes int64
	uploadLimit    func(http.Handler) http.Handler
}

func NewHandler(svc *Service, provider auth.AuthProvider, maxUploadBytes int64, uploadsPerMinute int) *Handler {
	return &Handler{
		svc:            svc,
		auth:           provider,
		maxUploadBytes: maxUploadBytes,
		uploadLimit: httprate.Limit(
			uploadsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limit_exceeded"})
			}),
		),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	base := config.DraftsUrlPath

	mux.HandleFunc("POST "+base, h.open)
	mux.HandleFunc("GET "+base+"/{id}", h.withSession(h.view))
	mux.HandleFunc("GET "+base+"/{id}/events", h.withSession(h.events))

	mux.HandleFunc("POST "+base+"/{id}/step", h.withSession(h.step))
	mux.HandleFunc("POST "+base+"/{id}/fields", h.withSession(h.fields))
	mux.Handle("POST "+base+"/{id}/assets", h.uploadLimit(h.withSession(h.upload)))
	mux.HandleFunc("POST "+base+"/{id}/assets/reorder", h.withSession(h.reorder))
	mux.HandleFunc("DELETE "+base+"/{id}/assets/{remoteID...}", h.withSession(h.removeAsset))

	mux.HandleFunc("POST "+base+"/{id}/discard", h.withSession(h.discard))
	mux.HandleFunc("POST "+base+"/{id}/discard/confirm", h.withSession(h.confirmDiscard))
	mux.HandleFunc("POST "+base+"/{id}/discard/cancel", h.withSession(h.cancelDiscard))
	mux.HandleFunc("POST "+base+"/{id}/navigate", h.withSession(h.navigate))
	mux.HandleFunc("POST "+base+"/{id}/unload", h.withSession(h.unload))
	mux.HandleFunc("POST "+base+"/{id}/finalize", h.withSession(h.finalize))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *Session)

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.auth.EnforceUserAndGetID(w, r)
		if err != nil {
			return
		}

		s, err := h.svc.Get(draft.ID(r.PathValue("id")), userID)
		if err != nil {
			// Another user's draft is reported as missing.
			writeJSON(w, http.StatusNotFound, errorResponse{Error: config.ErrDraftNotFound})
			return
		}

		l := zerolog.Ctx(r.Context()).With().Str("draft_id", string(s.ID())).Logger()
		next(w, r.WithContext(l.WithContext(r.Context())), s)
	}
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.EnforceUserAndGetID(w, r)
	if err != nil {
		return
	}
	s := h.svc.Open(userID)

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieDraftID,
		Value:    string(s.ID()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusCreated, s.Draft.Snapshot())
}

// draftView is the draft plus whether the surface must guard leave attempts.
type draftView struct {
	draft.Snapshot
	Guarded bool `json:"guarded"`
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request, s *Session) {
	snap := draftView{Snapshot: s.Draft.Snapshot(), Guarded: s.Guarded()}
	if tag, err := util.ETag(snap); err == nil {
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set(config.HETag, tag)
	}
	w.Header().Set(config.HCacheControl, "no-cache")
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request, s *Session) {
	h.svc.hub.ServeEvents(w, r, s.ID())
}

type stepRequest struct {
	Step string `json:"step"`
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, s *Session) {
	var req stepRequest
	if !decode(w, r, &req) {
		return
	}
	step, err := draft.ParseStep(req.Step)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.SetStep(step); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Draft.Snapshot())
}

// fieldsRequest sets one field by name, or the whole location when Location
// is present.
type fieldsRequest struct {
	Name     string          `json:"name"`
	Value    string          `json:"value"`
	Location *model.Location `json:"location,omitempty"`
}

func (h *Handler) fields(w http.ResponseWriter, r *http.Request, s *Session) {
	var req fieldsRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.Location != nil {
		err = s.SetLocation(*req.Location)
	} else {
		err = s.SetField(req.Name, req.Value)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, s *Session) {
	if r.ContentLength > h.maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: config.ErrUploadTooLarge})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: config.ErrInvalidRequest})
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			writeBodyError(w, err)
			return
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		defer part.Close()

		data, err := io.ReadAll(part)
		if err != nil {
			writeBodyError(w, err)
			return
		}

		contentType := part.Header.Get(config.HCType)
		if !allowedImageTypes[contentType] {
			contentType = http.DetectContentType(data)
		}
		if !allowedImageTypes[contentType] {
			writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: config.ErrUnsupportedType})
			return
		}

		asset, err := s.Upload(r.Context(), objectstore.Upload{
			Name:        part.FileName(),
			ContentType: contentType,
			Size:        int64(len(data)),
			Body:        bytes.NewReader(data),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
		return
	}
}

func (h *Handler) removeAsset(w http.ResponseWriter, r *http.Request, s *Session) {
	if err := s.RemoveAsset(r.Context(), r.PathValue("remoteID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request, s *Session) {
	var req reorderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Reorder(req.From, req.To); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Draft.Assets())
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request, s *Session) {
	h.writeDecision(w, s.RequestDiscard())
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, s *Session) {
	h.writeDecision(w, s.NavigationAttempted())
}

func (h *Handler) writeDecision(w http.ResponseWriter, d abandon.Decision) {
	if d.Action == abandon.Proceed {
		w.Header().Set(config.HHxRedirect, h.svc.opts.ListingPath)
	}
	writeJSON(w, http.StatusOK, d)
}

type confirmResponse struct {
	Discarded bool   `json:"discarded"`
	Redirect  string `json:"redirect,omitempty"`
}

func (h *Handler) confirmDiscard(w http.ResponseWriter, r *http.Request, s *Session) {
	if !s.ConfirmDiscard() {
		// No prompt on screen: the surface stays where it is.
		writeJSON(w, http.StatusOK, confirmResponse{})
		return
	}
	w.Header().Set(config.HHxRedirect, h.svc.opts.ListingPath)
	writeJSON(w, http.StatusOK, confirmResponse{Discarded: true, Redirect: h.svc.opts.ListingPath})
}

func (h *Handler) cancelDiscard(w http.ResponseWriter, r *http.Request, s *Session) {
	s.CancelDiscard()
	w.WriteHeader(http.StatusNoContent)
}

// unload answers the page's last-gasp beacon. The reclaim it triggers runs in
// the background.
func (h *Handler) unload(w http.ResponseWriter, r *http.Request, s *Session) {
	s.PageUnloading()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request, s *Session) {
	mem, err := s.Finalize(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(config.HHxRedirect, h.svc.opts.ListingPath)
	writeJSON(w, http.StatusCreated, mem)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr *draft.ValidationError
		upErr  *staging.UploadError
		delErr *staging.DeleteError
		rsErr  *bind.RecordStoreError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: valErr.Field, Kind: "validation"})
	case errors.As(err, &upErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "upload"})
	case errors.As(err, &delErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "delete"})
	case errors.As(err, &rsErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "record-store"})
	case errors.Is(err, draft.ErrInert):
		writeJSON(w, http.StatusGone, errorResponse{Error: err.Error()})
	case errors.Is(err, draft.ErrBindInFlight), errors.Is(err, bind.ErrFinalizeInFlight),
		errors.Is(err, draft.ErrDuplicateAsset), errors.Is(err, draft.ErrTooManyAssets):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, draft.ErrAssetNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, draft.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Unhandled draft error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: config.ErrInternalServerError})
	}
}

func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: config.ErrUploadTooLarge})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: config.ErrInvalidRequest})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("%s: %v", config.ErrInvalidRequest, err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
