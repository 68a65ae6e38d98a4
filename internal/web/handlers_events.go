package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/gridform/internal/core"
	"github.com/JonMunkholm/gridform/internal/logging"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 15 * time.Second

// handleEvents streams store events via Server-Sent Events. The optional
// "table" query parameter limits the stream to one table. Event ids count
// up from 1 per connection; a subscriber that falls behind misses events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var (
		events <-chan core.Event
		stop   func()
	)
	if name := r.URL.Query().Get("table"); name != "" {
		store, err := s.form.MustStore(name)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		events, stop = store.Subscribe(s.cfg.Form.EventBuffer)
	} else {
		events, stop = s.form.Subscribe(s.cfg.Form.EventBuffer)
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Warn("event stream: flush unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var id int
	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			id++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, ev.Kind, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
