package surface

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/draft"
)

// ServeEvents streams the draft's events until the request ends or the
// client is dropped.
func (h *Hub) ServeEvents(w http.ResponseWriter, r *http.Request, id draft.ID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeEventStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := NewClient(id)
	h.Add(client)
	defer h.Delete(client)

	writeEvent(w, Event{Name: EventConnected, Data: string(id)})
	flusher.Flush()

	surfaceLogger.Debug().Str("draft_id", string(id)).Msg("SSE client connected")

	for {
		select {
		case ev, ok := <-client.Msg:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			surfaceLogger.Debug().Str("draft_id", string(id)).Msg("SSE client disconnected")
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	fmt.Fprintf(w, "event: %s\n", ev.Name)
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
