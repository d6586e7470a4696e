package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/domain"
)

// StatusFunc reads the current persisted state of a job so the stream can
// open with a snapshot and survive subscribing after the job finished.
type StatusFunc func(ctx context.Context, jobID uuid.UUID) (domain.ProgressUpdate, bool, error)

// SSEHandler streams connected, progress and complete events for one job
// over a long-lived text/event-stream connection.
type SSEHandler struct {
	broadcaster *Broadcaster
	status      StatusFunc
	heartbeat   time.Duration
}

// NewSSEHandler wires the event stream endpoint.
func NewSSEHandler(broadcaster *Broadcaster, status StatusFunc, heartbeat time.Duration) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SSEHandler{broadcaster: broadcaster, status: status, heartbeat: heartbeat}
}

// ServeJob streams events for jobID until the job completes or the client
// disconnects. Disconnecting only drops the subscription; the job runs on.
func (h *SSEHandler) ServeJob(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before reading the snapshot so no update can fall between.
	updates, cancel := h.broadcaster.Subscribe(jobID)
	defer cancel()

	snapshot, terminal, err := h.status(r.Context(), jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	writeEvent(w, "connected", snapshot)
	flusher.Flush()

	if terminal {
		writeEvent(w, "complete", snapshot)
		flusher.Flush()
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// Comment frame keeps idle proxies from dropping the connection.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case update, open := <-updates:
			if !open {
				return
			}
			if update.Status.Terminal() {
				writeEvent(w, "complete", update)
				flusher.Flush()
				return
			}
			writeEvent(w, "progress", update)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
