package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
)

type sseFrame struct {
	event string
	data  string
}

// readFrame reads one "event:/data:" frame, skipping keep-alive comments.
func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		case line == "" && f.event != "":
			return f
		}
	}
}

func TestSSE_StreamsFilteredEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?venue_id=v1", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	if f := readFrame(t, reader); f.event != "connected" {
		t.Fatalf("first frame = %q, want connected", f.event)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	label := core.VenueLabel{Label: core.Label{Ramp: true}, EvidenceRef: "https://img.example/a.jpg"}
	env.bus.Publish(events.NewLabelUpdatedEvent("v2", label, "reevaluation", at))
	env.bus.Publish(events.NewLabelUpdatedEvent("v1", label, "reevaluation", at))
	env.bus.Publish(events.NewLabelNeedsEvidenceEvent("v1", 2, at))

	f := readFrame(t, reader)
	if f.event != events.TypeLabelUpdated {
		t.Fatalf("event = %q, want %q", f.event, events.TypeLabelUpdated)
	}
	var payload notificationPayload
	if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.VenueID != "v1" {
		t.Errorf("venue_id = %q, want v1 (v2 should be filtered)", payload.VenueID)
	}
	if payload.Label == nil || !payload.Label.Ramp || payload.Label.Curb {
		t.Errorf("label = %+v", payload.Label)
	}
	if !payload.At.Equal(at) {
		t.Errorf("at = %v, want %v", payload.At, at)
	}

	f = readFrame(t, reader)
	if f.event != events.TypeLabelNeedsEvidence {
		t.Fatalf("event = %q, want %q", f.event, events.TypeLabelNeedsEvidence)
	}
	if strings.Contains(f.data, `"label"`) {
		t.Errorf("needs-evidence payload should carry no label: %s", f.data)
	}
}

func TestSSE_InvalidFilter(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/events?venue_id=bad%20id", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestSSE_NoBus(t *testing.T) {
	env := newTestEnv(t)
	s := NewServer(env.engine, env.store, env.store)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestToNotification(t *testing.T) {
	r := &core.Report{ID: "r1", VenueID: "v1", CreatedAt: time.Now()}
	r.SetDisagrees(true)

	p := toNotification(events.NewReportSubmittedEvent(r))
	if p.Type != events.TypeReportSubmitted || p.ReportID != "r1" || p.VenueID != "v1" {
		t.Errorf("payload = %+v", p)
	}
	if p.Label != nil {
		t.Error("report event should carry no label")
	}
}
