package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ssePacingDelay staggers consecutive events so a tight tool-call loop
// cannot starve the HTTP event loop (spec.md §5: "~10 ms").
const ssePacingDelay = 10 * time.Millisecond

// sseWriter streams spec.md §4.9's wire framing: each event is a single
// `data: <json>\n\n` line, where <json> is one of the agent.Event records
// of spec.md §6. There is no `event:` line — the record's own `type` field
// carries that information.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

// newSSEWriter prepares SSE headers and returns a writer, or nil if the
// ResponseWriter does not support flushing.
func newSSEWriter(w http.ResponseWriter, r *http.Request) *sseWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher, ctx: r.Context()}
}

// Send marshals data and writes one SSE frame. Returns false once the
// client has disconnected; the caller should stop sending.
func (s *sseWriter) Send(data any) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("[web] sse marshal: %v", err)
		return false
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return false
	}
	s.flusher.Flush()
	time.Sleep(ssePacingDelay)
	return true
}
