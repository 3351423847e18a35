package server

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	stderrors "property-intelligence/internal/common/errors"
)

// LogStream broadcasts log lines to SSE subscribers. It implements
// zapcore.WriteSyncer so it can sit behind a tee core on the main logger.
// Slow subscribers lose lines rather than block the logger.
type LogStream struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

const subscriberBuffer = 64

func NewLogStream() *LogStream {
	return &LogStream{
		subs: make(map[chan string]struct{}),
	}
}

// Write fans one log line out to every subscriber. Never blocks.
func (ls *LogStream) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, "\n"))
	if line == "" {
		return len(p), nil
	}

	ls.mu.Lock()
	for ch := range ls.subs {
		select {
		case ch <- line:
		default:
			// Subscriber buffer full, drop the line for this client.
		}
	}
	ls.mu.Unlock()
	return len(p), nil
}

func (ls *LogStream) Sync() error { return nil }

func (ls *LogStream) subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	ls.mu.Lock()
	ls.subs[ch] = struct{}{}
	ls.mu.Unlock()
	return ch
}

func (ls *LogStream) unsubscribe(ch chan string) {
	ls.mu.Lock()
	delete(ls.subs, ch)
	ls.mu.Unlock()
}

// handleLogStream serves the SSE feed until the client disconnects.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, stderrors.NewInvalidRequestError("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.logStream.subscribe()
	defer s.logStream.unsubscribe(ch)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case line := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}
