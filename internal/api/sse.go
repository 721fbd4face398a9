package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
)

// sseKeepAlive is the interval between comment lines that keep idle proxies
// from closing the stream.
const sseKeepAlive = 25 * time.Second

// notificationPayload is the transport-agnostic wire shape of an event.
type notificationPayload struct {
	Type          string               `json:"type"`
	VenueID       string               `json:"venue_id"`
	Label         *events.LabelPayload `json:"label,omitempty"`
	Source        string               `json:"source,omitempty"`
	ReportID      string               `json:"report_id,omitempty"`
	EvidenceTried *int                 `json:"evidence_tried,omitempty"`
	At            time.Time            `json:"at"`
}

func toNotification(event events.Event) notificationPayload {
	p := notificationPayload{
		Type:    event.EventType(),
		VenueID: event.VenueID(),
		At:      event.Timestamp().UTC(),
	}
	switch e := event.(type) {
	case events.LabelUpdatedEvent:
		label := e.Label
		p.Label = &label
		p.Source = e.Source
	case events.LabelNeedsEvidenceEvent:
		tried := e.EvidenceTried
		p.EvidenceTried = &tried
	case events.ReportSubmittedEvent:
		p.ReportID = e.ReportID
	}
	return p
}

// handleSSE streams notifications, optionally filtered by ?venue_id=.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.eventBus == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event stream not available"})
		return
	}

	venueFilter := r.URL.Query().Get("venue_id")
	if venueFilter != "" {
		if err := core.ValidateID("venue_id", venueFilter); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	eventCh := s.eventBus.Subscribe(
		events.TypeLabelUpdated,
		events.TypeLabelNeedsEvidence,
		events.TypeReportSubmitted,
	)
	defer s.eventBus.Unsubscribe(eventCh)

	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr, "venue_filter", venueFilter)
	s.writeSSE(w, flusher, "connected", map[string]string{"status": "connected"})

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if venueFilter != "" && event.VenueID() != venueFilter {
				continue
			}
			s.writeSSE(w, flusher, event.EventType(), toNotification(event))
		}
	}
}

// writeSSE writes one event in "event: type\ndata: json\n\n" framing.
func (s *Server) writeSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
