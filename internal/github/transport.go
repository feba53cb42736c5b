package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit holds the values of the x-ratelimit-* response headers.
// Unknown values are -1.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	Reset     time.Time
}

// StatusCounters tracks HTTP response classes.
type StatusCounters struct {
	Success2XX int
	Error4XX   int
	Error5XX   int
}

// Status is a snapshot of API traffic seen so far.
type Status struct {
	Counters  StatusCounters
	RateLimit RateLimit
}

// Monitor aggregates status codes and rate limit headers of every response.
type Monitor struct {
	mu       sync.Mutex
	status   Status
	observer func(Status)
}

// NewMonitor returns a monitor with unknown rate limits. observer, if not
// nil, is called with a fresh snapshot after every response.
func NewMonitor(observer func(Status)) *Monitor {
	return &Monitor{
		status:   Status{RateLimit: RateLimit{Limit: -1, Remaining: -1, Used: -1}},
		observer: observer,
	}
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) observe(resp *http.Response) {
	m.mu.Lock()
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		m.status.Counters.Success2XX++
	case code >= 400 && code < 500:
		m.status.Counters.Error4XX++
	case code >= 500:
		m.status.Counters.Error5XX++
	}

	rl := &m.status.RateLimit
	if val, ok := parseHeaderInt(resp.Header, "x-ratelimit-limit"); ok {
		rl.Limit = val
	}
	if val, ok := parseHeaderInt(resp.Header, "x-ratelimit-remaining"); ok {
		rl.Remaining = val
	}
	if val, ok := parseHeaderInt(resp.Header, "x-ratelimit-used"); ok {
		rl.Used = val
	}
	if reset := resp.Header.Get("x-ratelimit-reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			rl.Reset = time.Unix(val, 0)
		}
	}
	snapshot := m.status
	m.mu.Unlock()

	m.notify(snapshot)
}

// queryFailed reclassifies a 200 response that carried GraphQL errors.
func (m *Monitor) queryFailed() {
	m.mu.Lock()
	if m.status.Counters.Success2XX > 0 {
		m.status.Counters.Success2XX--
	}
	m.status.Counters.Error4XX++
	snapshot := m.status
	m.mu.Unlock()

	m.notify(snapshot)
}

func (m *Monitor) notify(s Status) {
	if m.observer != nil {
		m.observer(s)
	}
}

func parseHeaderInt(headers http.Header, key string) (int, bool) {
	if value := headers.Get(key); value != "" {
		if val, err := strconv.Atoi(value); err == nil {
			return val, true
		}
	}
	return 0, false
}

// responseRecord captures what the transport saw for one logical request.
type responseRecord struct {
	status  int
	message string
}

type recordKey struct{}

func withRecord(ctx context.Context) (context.Context, *responseRecord) {
	rec := &responseRecord{}
	return context.WithValue(ctx, recordKey{}, rec), rec
}

func recordFrom(ctx context.Context) *responseRecord {
	rec, _ := ctx.Value(recordKey{}).(*responseRecord)
	return rec
}

// monitoredTransport feeds every response into a Monitor and, for requests
// carrying a responseRecord, keeps the status code and error message.
type monitoredTransport struct {
	wrapped http.RoundTripper
	monitor *Monitor
}

func (t *monitoredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.wrapped.RoundTrip(req)
	if resp == nil {
		return resp, err
	}

	t.monitor.observe(resp)

	if rec := recordFrom(req.Context()); rec != nil {
		rec.status = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			if readErr == nil {
				rec.message = errorMessage(body)
			}
		}
	}
	return resp, err
}

const maxMessageLength = 200

// errorMessage extracts the "message" field GitHub puts in error bodies,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength] + "..."
	}
	return msg
}
