package server

import (
	"bytes"
	"net/http"
	"strings"
	"sync"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

// IdempotencyHeader names the client-supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// keyLocks serialises concurrent requests sharing a key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// idempotent replays the first stored response for a caller's key. Server
// errors are not stored so the client may retry them.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key == "" || s.storage == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			s.writeError(w, http.StatusBadRequest, "bad_request", "idempotency key too long")
			return
		}
		caller, _ := CallerFromContext(r.Context())
		scope := caller.Hex() + "|" + key
		unlock := s.idemLocks.lock(scope)
		defer unlock()

		record, ok, err := s.storage.LookupIdempotency(r.Context(), key, caller.Hex())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(record.Status)
			_, _ = w.Write([]byte(record.Response))
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			return
		}
		requestID := chimw.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
		}
		err = s.storage.SaveIdempotency(r.Context(), storage.IdempotencyKey{
			Key:       key,
			Caller:    caller.Hex(),
			RequestID: requestID,
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    status,
			Response:  recorder.buf.String(),
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			s.logger.Warn("store idempotent response", "error", err)
		}
	})
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
