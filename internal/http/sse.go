package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hperssn/mockinterview/internal/runner"
)

// keepAliveInterval spaces the comment lines that keep idle streams open
// through proxies.
const keepAliveInterval = 15 * time.Second

// StreamInterviewEvents streams the caller's controller events as SSE.
func StreamInterviewEvents(manager *runner.SessionManager, userID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		uid := userID(r)
		events, unsubscribe := manager.For(uid).Subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		log.Debug().Str("userId", uid).Msg("Event stream opened")
		defer log.Debug().Str("userId", uid).Msg("Event stream closed")

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}

				data, err := json.Marshal(ev)
				if err != nil {
					log.Error().Err(err).Msg("Failed to marshal interview event")
					continue
				}
				if _, err := w.Write([]byte("event: " + string(ev.Type) + "\ndata: ")); err != nil {
					return
				}
				w.Write(data)
				w.Write([]byte("\n\n"))

				flusher.Flush()

			case <-keepAlive.C:
				if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
					return
				}
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}
