package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 128
)

// handleStream replays retained ledger events newer than ?after and then
// streams live entries. ?types filters by a comma separated list of event
// types.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusServiceUnavailable, "unavailable", "event stream not configured")
		return
	}
	var after uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: after must be a sequence number", errBadRequest))
			return
		}
		after = parsed
	}
	filter := make(map[string]struct{})
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = struct{}{}
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, after, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, after uint64, filter map[string]struct{}) error {
	updates, cancel, backlog := s.events.Subscribe(after, wsBuffer)
	defer cancel()

	send := func(entry events.Entry) error {
		if len(filter) > 0 {
			if _, ok := filter[entry.Type]; !ok {
				return nil
			}
		}
		return writeEntry(ctx, conn, entry)
	}
	for _, entry := range backlog {
		if err := send(entry); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind")
			}
			if err := send(entry); err != nil {
				return err
			}
		}
	}
}

func writeEntry(ctx context.Context, conn *websocket.Conn, entry events.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
