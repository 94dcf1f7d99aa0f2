package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// stubBackend serves scripted responses and records every exchange in the
// trace.
type stubBackend struct {
	mu        sync.Mutex
	responses map[string][]StubResponse
	served    map[string]int
	record    func(TraceEvent)
	server    *httptest.Server
}

func newStubBackend(responses []StubResponse, record func(TraceEvent)) *stubBackend {
	b := &stubBackend{
		responses: make(map[string][]StubResponse),
		served:    make(map[string]int),
		record:    record,
	}
	for _, r := range responses {
		method, path, _ := splitRequest(r.Request)
		key := method + " " + path
		b.responses[key] = append(b.responses[key], r)
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *stubBackend) URL() string {
	return b.server.URL
}

func (b *stubBackend) Close() {
	b.server.Close()
}

func (b *stubBackend) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	raw, _ := io.ReadAll(r.Body)
	b.record(TraceEvent{
		Type:           EventRequest,
		Request:        key,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Body:           decodeBody(raw),
	})

	resp, ok := b.next(key)
	if !ok {
		resp = StubResponse{
			Status: http.StatusNotFound,
			Body:   map[string]any{"code": http.StatusNotFound, "msg": "no stub for " + key},
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	var body []byte
	if resp.Raw != "" {
		body = []byte(resp.Raw)
	} else if resp.Body != nil {
		var err error
		if body, err = json.Marshal(resp.Body); err != nil {
			body = []byte(fmt.Sprintf(`{"code":500,"msg":%q}`, err.Error()))
			status = http.StatusInternalServerError
		}
	}

	b.record(TraceEvent{Type: EventResponse, Request: key, Status: status, Body: decodeBody(body)})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (b *stubBackend) next(key string) (StubResponse, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.responses[key]
	if len(queue) == 0 {
		return StubResponse{}, false
	}
	i := b.served[key]
	if i >= len(queue) {
		i = len(queue) - 1
	}
	b.served[key]++
	return queue[i], true
}

// decodeBody returns the JSON value in raw, the raw text when it is not
// JSON, or nil when empty.
func decodeBody(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
